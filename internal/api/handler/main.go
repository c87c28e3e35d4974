package handler

import (
	"net/http"

	"square/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == "debug" {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "🏆")
	})

	routesAPIv1 := r.Group("/api/v1")
	{
		bot, err := do.Invoke[*services.Bot](cfg.Container)
		if err != nil {
			return nil, err
		}
		authentication, err := do.Invoke[*services.Authentication](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.Origins,
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)

		routesAPIv1Me := routesAPIv1.Group("/user/me")
		routesAPIv1Me.Use(Authn(bot))
		{
			u := groupUser{cfg.Container}
			routesAPIv1Me.GET("", u.Me)
		}

		routesAPIv1.Use(AuthnToken(authentication)) // AuthnToken will NOT terminate unauthenticated request.
		routesAPIv1.GET("", Hello)

		t := groupTask{cfg.Container}
		routesAPIv1.GET("/tasks", t.GetAvailableTasks)
		routesAPIv1.POST("/tasks/:id/complete", t.CompleteTask)

		ci := groupCheckIn{cfg.Container}
		routesAPIv1.POST("/check-in", ci.Claim)

		rw := groupRewards{cfg.Container}
		routesAPIv1.GET("/rewards/me", rw.Me)

		l := groupLeaderboard{cfg.Container}
		routesAPIv1.GET("/leaderboard", l.GetLeaderboard)

		routesAPIv1Admin := routesAPIv1.Group("/admin")
		{
			a := groupAdmin{cfg.Container}
			routesAPIv1Admin.POST("/tasks", t.CreateTask)
			routesAPIv1Admin.GET("/tasks", t.GetAllTasks)
			routesAPIv1Admin.PUT("/tasks/:id", t.UpdateTask)
			routesAPIv1Admin.PATCH("/tasks/:id/toggle", t.ToggleTask)
			routesAPIv1Admin.DELETE("/tasks/:id", t.DeleteTask)

			routesAPIv1Admin.POST("/points/award", a.AwardPoints)
			routesAPIv1Admin.GET("/rewards/:id", rw.Show)
			routesAPIv1Admin.POST("/users/:id/streak/reset", a.ResetUserStreak)
			routesAPIv1Admin.DELETE("/users/:id/tasks/:task_id", a.ClearTaskCompletion)

			routesAPIv1Admin.GET("/admins", a.ListAdmins)
			routesAPIv1Admin.POST("/admins", a.AddAdmin)
			routesAPIv1Admin.DELETE("/admins/:id", a.RemoveAdmin)
		}
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}
