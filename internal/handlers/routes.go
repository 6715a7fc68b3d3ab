package handlers

import "net/http"

// Dependencies aggregates collaborators required by the HTTP handlers.
type Dependencies struct {
	Users       UserService
	Posts       PostService
	Stories     StoryService
	AuthLimiter RateLimiter
	DB          Pinger
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	auth := AuthHandler{Users: deps.Users, Limiter: deps.AuthLimiter}
	posts := PostHandler{Posts: deps.Posts, Users: deps.Users}
	users := UserHandler{Users: deps.Users}
	stories := StoryHandler{Stories: deps.Stories, Users: deps.Users}

	mux.HandleFunc("/healthz", health.Handle)

	mux.HandleFunc("/api/v1/auth/signup", auth.SignUp)
	mux.HandleFunc("/api/v1/auth/signin", auth.SignIn)
	mux.HandleFunc("/api/v1/auth/signout", auth.SignOut)
	mux.HandleFunc("/api/v1/auth/me", auth.Me)

	mux.HandleFunc("/api/v1/posts", posts.Create)
	mux.HandleFunc("/api/v1/posts/get", posts.Get)
	mux.HandleFunc("/api/v1/posts/update", posts.Update)
	mux.HandleFunc("/api/v1/posts/delete", posts.Delete)
	mux.HandleFunc("/api/v1/posts/feed", posts.Feed)
	mux.HandleFunc("/api/v1/posts/recent", posts.Recent)
	mux.HandleFunc("/api/v1/posts/search", posts.Search)
	mux.HandleFunc("/api/v1/posts/by-user", posts.ByUser)
	mux.HandleFunc("/api/v1/posts/like", posts.Like)
	mux.HandleFunc("/api/v1/posts/liked", posts.Liked)
	mux.HandleFunc("/api/v1/posts/save", posts.Save)
	mux.HandleFunc("/api/v1/posts/unsave", posts.Unsave)
	mux.HandleFunc("/api/v1/posts/saved", posts.Saved)

	mux.HandleFunc("/api/v1/users", users.List)
	mux.HandleFunc("/api/v1/users/get", users.Get)
	mux.HandleFunc("/api/v1/users/update", users.Update)

	mux.HandleFunc("/api/v1/stories", stories.Route)
	mux.HandleFunc("/api/v1/stories/delete", stories.Delete)
	mux.HandleFunc("/api/v1/stories/stream", stories.Stream)
}
