// Command gatekeeper-web is a small form-login demo: a public landing and
// home page, a login form, and a protected item area plus session
// inspection endpoint, all behind the session guard.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mbyeon/gatekeeper"
	"github.com/mbyeon/gatekeeper/access"
	"github.com/mbyeon/gatekeeper/memstore"
	"github.com/mbyeon/gatekeeper/middleware"
	"github.com/mbyeon/gatekeeper/webtoken"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("app", "gatekeeper-web").Logger()

	v := viper.New()
	v.SetConfigName("gatekeeper")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/gatekeeper")
	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen", ":8080")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("session.prefix", "gk")
	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("quota.max_sessions", 1)
	v.SetDefault("quota.prevent_new_login", false)
	v.SetDefault("cookie.secure", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			logger.Fatal().Err(err).Msg("read config")
		}
		logger.Info().Msg("no config file found, using defaults")
	}

	rdb := redis.NewClient(&redis.Options{Addr: v.GetString("redis.addr")})
	defer rdb.Close()

	cfg := gatekeeper.DefaultConfig()
	cfg.Session.RedisPrefix = v.GetString("session.prefix")
	cfg.Session.IdleTimeout = v.GetDuration("session.idle_timeout")
	cfg.Quota.MaxSessionsPerPrincipal = v.GetInt("quota.max_sessions")
	cfg.Quota.PreventNewLoginWhenFull = v.GetBool("quota.prevent_new_login")

	engine, err := gatekeeper.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountStore(seedAccounts(logger, cfg)).
		WithAuditSink(gatekeeper.NewZerologSink(logger)).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}
	defer engine.Close()

	tokens, err := webtoken.NewManager(webtoken.Config{Key: webtokenKey(v)})
	if err != nil {
		logger.Fatal().Err(err).Msg("build webtoken manager")
	}

	secure := v.GetBool("cookie.secure")
	router := newRouter(engine, tokens, secure)

	guard := middleware.Guard(middleware.GuardConfig{
		Engine: engine,
		Policy: access.DefaultPolicy(),
		Tokens: tokens,
		Secure: secure,
	})

	srv := &http.Server{
		Addr:              v.GetString("listen"),
		Handler:           guard(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("serve")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
}

func seedAccounts(logger zerolog.Logger, cfg gatekeeper.Config) *memstore.Store {
	store := memstore.New()
	hasher, err := gatekeeper.NewHasher(cfg.Password)
	if err != nil {
		logger.Fatal().Err(err).Msg("build hasher")
	}
	if err := memstore.Seed(store, hasher); err != nil {
		logger.Fatal().Err(err).Msg("seed accounts")
	}
	return store
}

func webtokenKey(v *viper.Viper) []byte {
	if key := v.GetString("webtoken.key"); key != "" {
		return []byte(key)
	}
	// Ephemeral key: return-to cookies die on restart, which is fine for
	// the demo.
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err)
	}
	return key
}

func newRouter(engine *gatekeeper.Engine, tokens *webtoken.Manager, secure bool) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.SetHTMLTemplate(template.Must(template.New("pages").Parse(pageTemplates)))

	loginCfg := middleware.LoginConfig{
		Engine: engine,
		Tokens: tokens,
		Secure: secure,
	}

	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "landing", loggedIn(c))
	})
	r.GET("/home", func(c *gin.Context) {
		c.HTML(http.StatusOK, "home", loggedIn(c))
	})
	r.GET("/login", func(c *gin.Context) {
		c.HTML(http.StatusOK, "login", gin.H{
			"Error":        c.Query("error") == "true",
			"SessionLimit": c.Query("error") == "session-limit",
		})
	})
	r.POST("/login", gin.WrapH(middleware.LoginHandler(loginCfg)))
	r.POST("/logout", gin.WrapH(middleware.LogoutHandler(loginCfg)))
	r.GET("/session-info", gin.WrapH(middleware.SessionInfoHandler()))
	r.GET("/form/items", func(c *gin.Context) {
		c.HTML(http.StatusOK, "items", loggedIn(c))
	})

	return r
}

func loggedIn(c *gin.Context) gin.H {
	if info, ok := middleware.SessionFromContext(c.Request.Context()); ok {
		return gin.H{"Name": info.Principal.Name, "LoggedIn": true}
	}
	return gin.H{"LoggedIn": false}
}

const pageTemplates = `
{{define "landing"}}<!doctype html><html><body>
<h1>gatekeeper demo</h1>
{{if .LoggedIn}}<p>Hello, {{.Name}}.</p>
<form method="post" action="/logout"><button>Log out</button></form>
{{else}}<p><a href="/login">Log in</a> (test / test!)</p>{{end}}
</body></html>{{end}}

{{define "home"}}<!doctype html><html><body>
<h1>Home</h1>
{{if .LoggedIn}}<p>Hello, {{.Name}}.</p>
<p><a href="/form/items">Items</a> · <a href="/session-info">Session info</a></p>
<form method="post" action="/logout"><button>Log out</button></form>
{{else}}<p><a href="/login">Log in</a></p>{{end}}
</body></html>{{end}}

{{define "login"}}<!doctype html><html><body>
<h1>Log in</h1>
{{if .Error}}<p>Wrong login or password.</p>{{end}}
{{if .SessionLimit}}<p>You are already logged in elsewhere.</p>{{end}}
<form method="post" action="/login">
<label>Login <input name="loginId"></label>
<label>Password <input name="password" type="password"></label>
<button>Log in</button>
</form>
</body></html>{{end}}

{{define "items"}}<!doctype html><html><body>
<h1>Items</h1>
<p>Hello, {{.Name}}. This page needs a session.</p>
<p><a href="/home">Home</a></p>
</body></html>{{end}}
`
