// Package api is the reference quiz catalog backend the editor talks to.
package api

import (
	"github.com/gin-gonic/gin"

	"quiz-editor/internal/app"
)

type Handler struct {
	store app.QuizStore
}

func NewHandler(store app.QuizStore) *Handler {
	return &Handler{store: store}
}

// NewRouter registers the catalog routes. With a non-empty secret every
// request needs a bearer token and writes need the admin role. Extra
// middleware runs after recovery on every route.
func NewRouter(store app.QuizStore, secret []byte, middleware ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware...)

	h := NewHandler(store)
	quiz := r.Group("/Quiz")
	if len(secret) > 0 {
		quiz.Use(Authenticate(secret))
	}

	quiz.GET("", h.ListQuizzes)

	admin := quiz.Group("")
	if len(secret) > 0 {
		admin.Use(RequireRole(authRoleAdmin))
	}
	admin.POST("", h.CreateQuiz)
	admin.PUT("/:id", h.UpdateQuiz)
	admin.DELETE("/:id", h.DeleteQuiz)
	admin.POST("/question", h.CreateQuestion)
	admin.PUT("/question/:id", h.UpdateQuestion)
	admin.DELETE("/question/:id", h.DeleteQuestion)
	admin.PUT("/answer/:id", h.UpdateAnswer)
	admin.DELETE("/answer/:id", h.DeleteAnswer)
	return r
}
