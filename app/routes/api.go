package routes

import (
	"github.com/shashiranjanraj/offersync/app/controllers"
	"github.com/shashiranjanraj/offersync/pkg/router"
)

// RegisterAPI mounts the /api routes. mws wrap every one of them.
func RegisterAPI(r *router.Router, products *controllers.ProductController, sync *controllers.SyncController, mws ...router.Middleware) {
	api := r.Group("/api", mws...)

	api.Post("/products", "products.store", products.Store)
	api.Get("/products", "products.index", products.Index)
	api.Patch("/products/{id}", "products.update", products.Update)
	api.Delete("/products/{id}", "products.destroy", products.Destroy)
	api.Get("/products/{id}/history", "products.history", products.History)

	api.Post("/sync", "sync.run", sync.Run)
}
