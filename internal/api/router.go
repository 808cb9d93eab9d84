package api

import (
	"github.com/gin-gonic/gin"
	"github.com/pccr10001/smsfleet/internal/auth"
	"github.com/pccr10001/smsfleet/internal/hub"
	"github.com/pccr10001/smsfleet/internal/notify"
	"github.com/pccr10001/smsfleet/internal/repository"
	"gorm.io/gorm"
)

// NewRouter wires the HTTP surface: auth, realtime endpoints, message
// queries, read receipts and the CRUD collaborators.
func NewRouter(db *gorm.DB, refresh *auth.RefreshStore) (*gin.Engine, *hub.Hub) {
	userRepo := repository.NewUserRepository(db)
	smsRepo := repository.NewSMSRepository(db)
	hangupRepo := repository.NewHangupRepository(db)
	snapshotRepo := repository.NewSnapshotRepository(db)
	receiptRepo := repository.NewReceiptRepository(db)
	allocationRepo := repository.NewAllocationRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	sendRepo := repository.NewSendRecordRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)

	webhooks := notify.NewWebhookService(webhookRepo)
	ingest := hub.NewIngestor(smsRepo, hangupRepo, snapshotRepo, sendRepo, webhooks)
	realtimeHub := hub.NewHub(ingest)

	uh := NewUserHandler(userRepo, refresh)
	sh := NewSMSHandler(db, smsRepo, receiptRepo)
	hh := NewHangupHandler(db, hangupRepo, receiptRepo)
	rh := NewReadReceiptHandler(db, smsRepo, hangupRepo, receiptRepo)
	dh := NewDeviceHandler(realtimeHub, snapshotRepo, sendRepo)
	ah := NewAllocationHandler(allocationRepo)
	nh := NewNoteHandler(noteRepo)
	wh := NewWebhookHandler(webhookRepo)

	r := gin.Default()

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Persistent connections.
	r.GET("/ws/agent", dh.AgentWS)
	r.GET("/ws/client", dh.ClientWS)

	r.POST("/users/login", uh.Login)
	r.POST("/users/refresh", uh.Refresh)

	authGroup := r.Group("/")
	authGroup.Use(AuthMiddleware(db))
	{
		authGroup.POST("/users/change-password", uh.ChangePassword)

		authGroup.GET("/device/connected", dh.ConnectedDevices)
		authGroup.POST("/device/scan-com-ports/:deviceId", dh.ScanComPorts)
		authGroup.GET("/device/com-snapshot/:deviceId", dh.GetSnapshot)
		authGroup.POST("/device/start-sms-receiver/:deviceId", dh.StartSmsReceiver)
		authGroup.POST("/device/stop-sms-receiver/:deviceId", dh.StopSmsReceiver)

		authGroup.GET("/smsmessages", sh.ListSms)
		authGroup.POST("/smsmessages/send", dh.SendSms)
		authGroup.GET("/smsmessages/send-records", dh.ListSendRecords)
		authGroup.DELETE("/smsmessages/:id", sh.SoftDelete)

		authGroup.GET("/call-hangup-records", hh.ListRecords)
		authGroup.DELETE("/call-hangup-records/:id", hh.SoftDelete)

		authGroup.POST("/message-read/mark-read", rh.MarkRead)
		authGroup.POST("/message-read/mark-all-read", rh.MarkAllRead)
		authGroup.GET("/message-read/unread-counts", rh.UnreadCounts)

		authGroup.GET("/notes", nh.List)
		authGroup.POST("/notes", nh.Create)
		authGroup.PUT("/notes/:id", nh.Update)
		authGroup.DELETE("/notes/:id", nh.Delete)

		adminGroup := authGroup.Group("/")
		adminGroup.Use(AdminOnly())
		{
			adminGroup.POST("/device/com-snapshot/:deviceId", dh.UpsertSnapshot)

			adminGroup.GET("/smsmessages/admin/all", sh.ListAllAdmin)
			adminGroup.DELETE("/smsmessages/admin/hard-delete/:id", sh.HardDelete)

			adminGroup.GET("/call-hangup-records/admin/all", hh.ListAllAdmin)
			adminGroup.DELETE("/call-hangup-records/admin/hard-delete/:id", hh.HardDelete)

			adminGroup.GET("/com-allocations", ah.List)
			adminGroup.POST("/com-allocations", ah.Create)
			adminGroup.PUT("/com-allocations/:id", ah.Update)
			adminGroup.DELETE("/com-allocations/:id", ah.Delete)

			adminGroup.GET("/users", uh.ListUsers)
			adminGroup.POST("/users", uh.CreateUser)
			adminGroup.PUT("/users/:id", uh.UpdateUser)
			adminGroup.DELETE("/users/:id", uh.DeleteUser)

			adminGroup.GET("/webhooks", wh.List)
			adminGroup.POST("/webhooks", wh.Create)
			adminGroup.DELETE("/webhooks/:id", wh.Delete)
		}
	}

	return r, realtimeHub
}
