package internal

import (
	"anonbot/internal/controllers"
	"anonbot/internal/providers"
	"net/http"
)

func InitRoutes(apiController *controllers.ApiController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/message", http.HandlerFunc(apiController.ReceiveMessage))
	routers.Post("/forward", http.HandlerFunc(apiController.Forward))
	routers.Get("/reply-route", http.HandlerFunc(apiController.GetReplyRoute))
	routers.Get("/targets", http.HandlerFunc(apiController.GetTargets))

	routers.Post("/block", http.HandlerFunc(apiController.Block))
	routers.Post("/unblock", http.HandlerFunc(apiController.Unblock))
	routers.Handle("/mode", map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(apiController.GetMode),
		http.MethodPost: http.HandlerFunc(apiController.SetMode),
	})
	routers.Get("/stats", http.HandlerFunc(apiController.GetStats))
	routers.Get("/user", http.HandlerFunc(apiController.GetUser))
	routers.Get("/recipients", http.HandlerFunc(apiController.GetRecipients))
	routers.Get("/history", http.HandlerFunc(apiController.GetHistory))
	routers.Post("/save", http.HandlerFunc(apiController.Save))
	return routers
}
