package handler

import (
	"todo-sync-go/internal/transport/httpserver/handler/collections"
	"todo-sync-go/internal/transport/httpserver/handler/common"
)

type Handlers struct {
	Common      *common.Handlers
	Collections *collections.Handlers
}

func New(common *common.Handlers, collections *collections.Handlers) *Handlers {
	return &Handlers{
		Common:      common,
		Collections: collections,
	}
}
