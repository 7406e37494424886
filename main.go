package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/api"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/database"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/hybrid"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/notify"
	"github.com/PythonTilk/BetterUntis-iOS-sub000/modules/site"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

var envKeys = []string{
	"UNTIS_SERVER",
	"UNTIS_SCHOOL",
	"UNTIS_USER",
	"UNTIS_PASSWORD",
	"MYSQL_USER",
	"MYSQL_PASS",
	"MYSQL_DB",
	"SITE_ADDR",
}

func CheckEnv() error {
	if err := godotenv.Load(); err != nil {
		log.Print("No .env file found")
	}
	for _, key := range envKeys {
		if _, exists := os.LookupEnv(key); !exists {
			return fmt.Errorf("lost env key: %s", key)
		}
	}

	return nil
}

func main() {
	if err := CheckEnv(); err != nil {
		log.Fatal(err)
	}
	logs := database.OpenLogs()
	defer logs.CloseAll()

	engine, err := database.Connect(database.DB{
		User:   os.Getenv("MYSQL_USER"),
		Pass:   os.Getenv("MYSQL_PASS"),
		Addr:   os.Getenv("MYSQL_ADDR"),
		Schema: os.Getenv("MYSQL_DB"),
	}, logs.DBLogFile)
	if err != nil {
		log.Fatal(err)
	}
	store := database.NewStore(engine)

	preferREST, _ := strconv.ParseBool(os.Getenv("UNTIS_PREFER_REST"))
	cfg := hybrid.Config{
		Server:     os.Getenv("UNTIS_SERVER"),
		School:     os.Getenv("UNTIS_SCHOOL"),
		Identity:   os.Getenv("UNTIS_USER"),
		PreferREST: preferREST,
		EnableRPC:  true,
		EnableREST: true,
		EnableHTML: true,
	}
	session, err := hybrid.New(cfg, hybrid.Collaborators{
		Credentials:  store,
		Tokens:       store,
		Timetables:   store,
		MasterData:   store,
		Capabilities: store,
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := session.AuthenticateStored(ctx); err != nil {
		log.Println("stored login failed:", err)
		if err := session.Authenticate(ctx, os.Getenv("UNTIS_PASSWORD")); err != nil {
			log.Fatal(err)
		}
	}
	log.Printf("logged in over %s", session.CurrentProtocol())

	now := time.Now()
	tt, err := api.FetchWeek(ctx, session, now, 0)
	if err != nil {
		log.Println("first fetch:", err)
	} else {
		log.Printf("%d periods this week", len(tt.Periods))
		if tt.Warning != "" {
			log.Println("warning:", tt.Warning)
		}
	}
	if info, err := api.FetchInfoCenter(ctx, session, now, 0); err != nil {
		log.Println("info center:", err)
	} else if !info.Empty() {
		log.Printf(
			"info center: %d absences, %d homeworks, %d exams, %d messages",
			len(info.Absences), len(info.HomeWorks), len(info.Exams), len(info.Messages),
		)
	}

	var tg *tgbotapi.BotAPI
	var chatID int64
	if token := os.Getenv("TELEGRAM_APITOKEN"); token != "" {
		tg, err = tgbotapi.NewBotAPI(token)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("notifying as @%s", tg.Self.UserName)
		chatID, err = strconv.ParseInt(os.Getenv("TELEGRAM_CHATID"), 10, 64)
		if err != nil {
			log.Fatal("bad TELEGRAM_CHATID: ", err)
		}
	}

	userKey := cfg.UserKey()
	if _, err := store.EnsureWatchTarget(userKey, chatID); err != nil {
		log.Fatal(err)
	}
	feed, err := store.EnsureFeed(userKey, cfg.Identity)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("calendar feed at /ics/%d.ics", feed.FeedID)

	watcher := &notify.Watcher{
		Store: store,
		TG:    tg,
		Sessions: func(key string) (notify.Fetcher, bool) {
			return session, key == userKey
		},
	}

	c := cron.New()
	if _, err := c.AddFunc("@every 10m", func() {
		watcher.CheckTimetables(context.Background(), time.Now())
	}); err != nil {
		log.Fatal(err)
	}
	if _, err := c.AddFunc("@every 1m", func() {
		watcher.RemindUpcoming(time.Now())
	}); err != nil {
		log.Fatal(err)
	}
	c.Start()
	defer c.Stop()

	web := site.NewServer(store, os.Getenv("SITE_ADDR"))
	log.Fatal(web.Serve())
}
