package main

import (
	"crypto/rand"
	"math/big"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/pccr10001/smsfleet/internal/api"
	"github.com/pccr10001/smsfleet/internal/auth"
	"github.com/pccr10001/smsfleet/internal/config"
	"github.com/pccr10001/smsfleet/internal/mccmnc"
	"github.com/pccr10001/smsfleet/internal/model"
	"github.com/pccr10001/smsfleet/pkg/logger"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	config.LoadConfig()

	logger.InitLogger(config.AppConfig.Log.Level)
	logger.Log.Info("Starting SMS fleet server...")

	if err := mccmnc.LoadOperators("mcc_mnc.json"); err != nil {
		logger.Log.Warnf("Failed to load MCC/MNC data: %v", err)
	}

	db := initDB()

	redisClient := auth.NewRedisClient(config.AppConfig.Redis)
	refresh := auth.NewRefreshStore(redisClient)

	if config.AppConfig.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r, _ := api.NewRouter(db, refresh)

	port := config.AppConfig.Server.Port
	logger.Log.Infof("Server listening on %s", port)
	if err := r.Run(port); err != nil {
		logger.Log.Fatalf("Server failed to start: %v", err)
	}
}

func initDB() *gorm.DB {
	var db *gorm.DB
	var err error

	driver := config.AppConfig.Database.Driver
	dsn := config.AppConfig.Database.DSN

	switch driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(dsn), &gorm.Config{TranslateError: true})
	default:
		// Default to SQLite (pure Go)
		if dsn == "" {
			dsn = "smsfleet.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	}

	if err != nil {
		logger.Log.Fatalf("Failed to connect database (%s): %v", driver, err)
	}

	db.AutoMigrate(
		&model.User{},
		&model.ComAllocation{},
		&model.DeviceComSnapshot{},
		&model.SmsMessage{},
		&model.CallHangupRecord{},
		&model.MessageReadReceipt{},
		&model.SmsSendRecord{},
		&model.Note{},
		&model.Webhook{},
	)

	seedAdmin(db)

	return db
}

func seedAdmin(db *gorm.DB) {
	var count int64
	db.Model(&model.User{}).Count(&count)
	if count > 0 {
		return
	}

	const chars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	ret := make([]byte, 12)
	for i := 0; i < 12; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		if err != nil {
			logger.Log.Fatalf("Failed to generate random password: %v", err)
		}
		ret[i] = chars[num.Int64()]
	}
	randPw := string(ret)

	bytes, err := bcrypt.GenerateFromPassword([]byte(randPw), 14)
	if err != nil {
		logger.Log.Fatalf("Failed to hash password: %v", err)
	}

	admin := model.User{
		UserName:     "admin",
		PasswordHash: string(bytes),
		Role:         model.RoleAdmin,
	}
	db.Create(&admin)
	logger.Log.Warnf("INITIAL ADMIN CREATED. Username: admin, Password: %s", randPw)
}
