package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/judyrop/epicerie-backend/auth"
	"github.com/judyrop/epicerie-backend/cart"
	"github.com/judyrop/epicerie-backend/catalog"
	"github.com/judyrop/epicerie-backend/checkout"
	"github.com/judyrop/epicerie-backend/config"
	"github.com/judyrop/epicerie-backend/controllers"
	"github.com/judyrop/epicerie-backend/images"
	"github.com/judyrop/epicerie-backend/middlewares"
	"github.com/judyrop/epicerie-backend/notify"
	"github.com/judyrop/epicerie-backend/storage"
)

// Deps is everything SetupRouter wires into the handlers.
type Deps struct {
	Config   *config.Config
	Store    *catalog.Store
	Blobs    controllers.Blobs
	Carts    cart.Store
	Notifier checkout.Notifier
	Live     *notify.Hub
	Gate     *auth.Gate
	Now      func() time.Time
}

func main() {
	cfg := config.Load()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	store := catalog.NewStore(db)
	if err := store.Migrate(); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer rdb.Close()
	var carts cart.Store = cart.NewRedisStore(rdb)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Printf("redis unavailable at %s, carts kept in memory: %v", cfg.RedisAddr, err)
		carts = cart.NewMemoryStore()
	}

	gate := auth.NewGate(cfg)
	if cfg.OIDCIssuer != "" {
		if err := gate.WithOIDC(context.Background(), cfg.OIDCIssuer, cfg.OIDCClientID); err != nil {
			log.Fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	live := notify.NewHub(cfg.CORSOrigins)
	notifier, closeNotifier := setupNotifications(ctx, cfg, live)
	defer closeNotifier()

	r := SetupRouter(&Deps{
		Config:   cfg,
		Store:    store,
		Blobs:    storage.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.StorageBucket),
		Carts:    carts,
		Notifier: notifier,
		Live:     live,
		Gate:     gate,
		Now:      time.Now,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Épicerie du Quartier API starting on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()

	log.Println("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("server exited")
}

// setupNotifications publishes order events to RabbitMQ when a broker is
// configured and delivers them from a consumer. Without a broker they are
// delivered straight from the checkout goroutine.
func setupNotifications(ctx context.Context, cfg *config.Config, live *notify.Hub) (checkout.Notifier, func()) {
	direct := notify.Multi{live, notify.NewEmailNotifier(notify.NewSMTPMailer(cfg), cfg.ShopEmail)}
	if cfg.SMSURL != "" {
		direct = append(direct, notify.NewSMSNotifier(cfg.SMSURL, cfg.SMSUsername, cfg.SMSAPIKey))
	}

	if cfg.RabbitMQURL == "" {
		return direct, func() {}
	}

	mq, err := notify.NewRabbitMQ(cfg.RabbitMQURL, cfg.OrderExchange, cfg.NotifyQueue)
	if err != nil {
		log.Printf("rabbitmq unavailable, sending notifications directly: %v", err)
		return direct, func() {}
	}
	if err := mq.SetupQueues(); err != nil {
		log.Printf("failed to set up queues, sending notifications directly: %v", err)
		mq.Close()
		return direct, func() {}
	}
	if err := notify.NewConsumer(mq, direct).Start(ctx); err != nil {
		log.Printf("failed to start notification consumer: %v", err)
	}
	return notify.NewQueueNotifier(mq), mq.Close
}

// corsConfig allows credentials only for an explicit origin list. Browsers
// refuse credentialed responses carrying a wildcard origin.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func SetupRouter(d *Deps) *gin.Engine {
	r := gin.Default()

	cfg := d.Config
	now := d.Now
	if now == nil {
		now = time.Now
	}

	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(middlewares.PrometheusMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	resolver := images.NewResolver(cfg.SupabaseURL, cfg.StorageBucket)
	admin := d.Gate.RequireAdmin()

	products := &controllers.Catalog{Store: d.Store, Blobs: d.Blobs, Resolver: resolver, Now: now}
	carts := &controllers.Carts{
		Service:  cart.NewService(d.Carts, middlewares.CartObserver),
		Store:    d.Store,
		Resolver: resolver,
		Secure:   cfg.IsProduction(),
	}
	orders := &controllers.Orders{
		Pipeline: checkout.NewPipeline(d.Store, d.Notifier,
			checkout.WithClock(now),
			checkout.WithLocation(cfg.Location),
		),
		Store: d.Store,
		Carts: carts,
	}

	api := r.Group("/api")
	{
		api.GET("/categories", controllers.ListCategories(d.Store))
		api.GET("/categories/:id", controllers.GetCategory(d.Store))
		api.POST("/categories", admin, controllers.CreateCategory(d.Store))
		api.PUT("/categories/:id", admin, controllers.UpdateCategory(d.Store))
		api.DELETE("/categories/:id", admin, controllers.DeleteCategory(d.Store))

		api.GET("/products", products.ListProducts)
		api.GET("/products/export", admin, controllers.ExportProducts(d.Store))
		api.GET("/products/:id", products.GetProduct)
		api.GET("/products/slug/:slug", products.GetProductBySlug)
		api.POST("/products", admin, products.CreateProduct)
		api.PUT("/products/:id", admin, products.UpdateProduct)
		api.DELETE("/products/:id", admin, products.DeleteProduct)

		api.GET("/cart", carts.GetCart)
		api.POST("/cart/items", carts.AddItem)
		api.PUT("/cart/items/:productId", carts.UpdateQuantity)
		api.DELETE("/cart/items/:productId", carts.RemoveItem)
		api.DELETE("/cart", carts.Clear)

		api.POST("/orders", orders.CreateOrder)
		api.POST("/checkout", orders.Checkout)
		api.GET("/orders", admin, orders.ListOrders)
		if d.Live != nil {
			api.GET("/orders/live", admin, d.Live.Serve)
		}
		api.GET("/orders/:id", admin, orders.GetOrder)
		api.PUT("/orders/:id/status", admin, orders.UpdateStatus)
		api.DELETE("/orders/:id", admin, orders.DeleteOrder)

		api.POST("/seed", admin, controllers.Seed(d.Store))
		api.GET("/storage/init", admin, controllers.InitStorage(d.Blobs))
		api.POST("/migrate-images", admin, controllers.MigrateImages(d.Store, now))
		api.GET("/image-proxy/*path", controllers.ImageProxy(d.Blobs))

		api.POST("/auth/login", d.Gate.LoginHandler)
		api.GET("/auth/logout", d.Gate.LogoutHandler)
	}

	r.GET("/admin/login", d.Gate.LoginPage)
	r.GET("/admin", admin, controllers.Dashboard(d.Store))

	return r
}
