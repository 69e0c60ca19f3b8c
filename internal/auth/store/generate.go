package store

//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks
