package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	blade "github.com/dangdungcntt/go-blade-slots"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the views over HTTP",
		Long: `Serve renders GET /<template> as a page and GET /components/<name> as a
component. Query parameters become the template data.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"))
			if err != nil {
				return err
			}
			eng, err := newEngine(v, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if v.GetBool("watch") {
				go func() {
					if err := watchViews(ctx, eng, v.GetString("views"), logger); err != nil {
						logger.Error("watch views", slog.Any("error", err))
					}
				}()
			}
			return serve(ctx, v.GetString("addr"), newRouter(eng), logger)
		},
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "listen address")
	flags.Bool("watch", false, "reload templates when files change")
	bindFlags(v, flags, "addr", "watch")
	return cmd
}

func newRouter(eng *blade.Engine) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.HTMLRender = blade.NewHTMLRender(eng)

	router.GET("/components/:name", func(c *gin.Context) {
		in := blade.RenderInput{Kwargs: queryData(c)}
		c.HTML(http.StatusOK, c.Param("name"), blade.NewComponentView(c.Param("name"), in))
	})
	// pages are served by the fallback handler; a catch-all route would
	// conflict with /components/:name
	router.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		name := strings.Trim(c.Request.URL.Path, "/")
		if name == "" {
			name = "index"
		}
		if !eng.Exists(name) {
			c.String(http.StatusNotFound, "template %s not found", name)
			return
		}
		c.HTML(http.StatusOK, name, queryData(c))
	})
	return router
}

func queryData(c *gin.Context) map[string]any {
	data := map[string]any{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			data[key] = values[0]
		}
	}
	return data
}

func serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
