package main

import (
	"context"
	"log"
	"meetups/src/booking"
	"meetups/src/config"
	"meetups/src/db"
	"meetups/src/lib"
	"meetups/src/models"
	"os"
	"path"
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-co-op/gocron/v2"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	apiPrefix string = "/api/v1"
)

var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{4,20}$`)

var phoneValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	phone, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return phoneRe.MatchString(phone)
}

var (
	orderStore *booking.GormStore
	bus        *booking.Bus
	manager    *booking.ReservationManager
	confirmer  *booking.ConfirmationService
	reaper     *booking.ExpiryReaper
	gateway    booking.PaymentGateway
	pending    *booking.PendingInvoices
	poller     *booking.Poller
)

func setupEngine() {
	gdb := db.GetDb()
	if err := gdb.AutoMigrate(&models.Event{}, &models.EventOption{}, &models.Order{}); err != nil {
		log.Fatalf("Error migrating schema: %s\n", err.Error())
	}

	clock := booking.SystemClock()
	orderStore = booking.NewGormStore(gdb)
	bus = booking.NewBus()
	ledger := booking.NewCapacityLedger(orderStore, clock)
	allowRepeat := os.Getenv("ALLOW_REPEAT_PARTICIPATION") != "false"
	manager = booking.NewReservationManager(orderStore, ledger, bus, clock,
		booking.WithHoldTTL(config.GetHoldTTL()),
		booking.WithRepeatParticipation(allowRepeat),
	)
	confirmer = booking.NewConfirmationService(orderStore, ledger, bus, clock, lib.NewMailNotifier())
	reaper = booking.NewExpiryReaper(orderStore, bus, clock)
	gateway = lib.NewLightningGateway()
	pending = booking.NewPendingInvoices(lib.GetRedisClient())
	poller = booking.NewPoller(gateway, pending, confirmer)

	go booking.RedisBridge(context.Background(), lib.GetRedisClient(), "orders:events", bus.Subscribe(64))
}

func setupJobs() {
	if _, err := lib.CreateCronJob(func() {
		reaper.Sweep(context.Background())
	}, config.GetReaperInterval()); err != nil {
		log.Fatalf("Error scheduling reaper: %s\n", err.Error())
	}
	if _, err := lib.CreateCronJob(func() {
		poller.Poll(context.Background())
	}, config.GetPollerInterval()); err != nil {
		log.Fatalf("Error scheduling poller: %s\n", err.Error())
	}

	// One-shot completion rollover per upcoming event, shortly after
	// it starts. Events created later still roll over through the
	// admin complete endpoint.
	upcoming, err := orderStore.UpcomingEvents(context.Background(), time.Now().UTC())
	if err != nil {
		log.Fatalf("Error listing upcoming events: %s\n", err.Error())
	}
	for _, ev := range upcoming {
		_, err := lib.CreateOneTimeCronJob(
			gocron.OneTimeJob(gocron.OneTimeJobStartDateTime(ev.StartsAt.Add(time.Minute))),
			gocron.NewTask(func(eventID uint) {
				if _, err := manager.CompleteEvent(context.Background(), eventID); err != nil {
					log.Printf("Error completing event %d: %s\n", eventID, err.Error())
				}
			}, ev.ID),
		)
		if err != nil {
			log.Fatalf("Error scheduling completion for event %d: %s\n", ev.ID, err.Error())
		}
	}

	sched, err := lib.GetScheduler()
	if err != nil {
		log.Fatalf("Error retrieving Scheduler instance: %s\n", err.Error())
	}
	sched.Start()
}

func setupRouter(router *gin.Engine) {
	router.GET("/healthz", func(ctx *gin.Context) {
		status := gin.H{"status": "ok"}
		if !lib.RedisHealthy(ctx) {
			status["invoice_index"] = "unreachable"
		}
		ctx.JSON(200, status)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := router.Group(apiPrefix)
	checkoutHandlers(public)

	admin := router.Group(path.Join(apiPrefix, "admin"))
	adminHandlers(admin)
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}

	setupEngine()
	setupJobs()

	router := gin.Default()

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("phone", phoneValidatorFunc)
	}

	setupRouter(router)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Error starting server: %s\n", err.Error())
	}
}
