package routes

import (
	"github.com/gin-gonic/gin"
)

// Guards are the middlewares route groups attach: Auth authenticates the
// bearer token and Admin additionally requires the admin role.
type Guards struct {
	Auth  gin.HandlerFunc
	Admin gin.HandlerFunc
}

type Registrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func Register(router *gin.RouterGroup, registrars ...Registrar) {
	for _, r := range registrars {
		r.RegisterRoutes(router)
	}
}
