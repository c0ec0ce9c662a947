package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/vmail/api"
	"github.com/customeros/vmail/api/handlers"
	"github.com/customeros/vmail/config"
	"github.com/customeros/vmail/internal/cron"
	"github.com/customeros/vmail/internal/logger"
	"github.com/customeros/vmail/internal/repository"
	"github.com/customeros/vmail/internal/tracing"
	"github.com/customeros/vmail/services"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(cfg *config.Config, db *gorm.DB) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	_, closer, err := tracing.InitGlobalTracer(cfg.Tracing, appLogger)
	if err != nil {
		appLogger.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(cfg, appLogger, repos)
	if err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cron.NewCronManager(cfg, appLogger, kubernetesClient(appLogger), svcs.RetentionJanitor),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// kubernetesClient is nil outside a cluster, which puts the cron manager in local mode.
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in kubernetes: %v", err)
		return nil
	}
	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return clientset
}

func (s *Server) Initialize() {
	api.RegisterRoutes(s.router, s.config, s.log, handlers.Dependencies{
		Emails:      s.repositories.EmailRepository,
		AttachRepo:  s.repositories.EmailAttachmentRepository,
		Attachments: s.services.AttachmentStore,
		Blocklist:   s.services.BlocklistGuard,
		Deleter:     s.services.EmailDeleter,
		Janitor:     s.services.RetentionJanitor,
		Pipeline:    s.services.Pipeline,
		Forwarder:   s.services.Forwarder,
		Notifier:    s.services.NotificationDispatcher,
		Outbound:    s.services.OutboundMailer,
		AI:          s.services.AIService,
		Mailboxes:   s.services.MailboxService,
	})
}

func (s *Server) recoverWithJaeger(name string) {
	if r := recover(); r != nil {
		span := opentracing.GlobalTracer().StartSpan(fmt.Sprintf("panic.%s", name))
		defer span.Finish()

		ext.Error.Set(span, true)
		span.LogKV(
			"event", "panic",
			"process", name,
			"error", fmt.Sprintf("%v", r),
			"stack", string(debug.Stack()),
		)

		s.log.Errorf("Panic in %s: %v\n%s", name, r, debug.Stack())
	}
}

func (s *Server) wrapGoroutine(name string, fn func()) {
	defer s.recoverWithJaeger(name)
	fn()
}

func (s *Server) Run() error {
	s.Initialize()

	if s.services.SMTPServer != nil {
		go s.wrapGoroutine("smtp_server", func() {
			if err := s.services.SMTPServer.ListenAndServe(); err != nil {
				s.log.Errorf("SMTP server error: %v", err)
			}
		})
	}

	go s.wrapGoroutine("http_server", func() {
		s.log.Infof("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	})

	podName := os.Getenv("POD_NAME")
	if podName == "" {
		podName = "local"
	}
	if err := s.cronManager.Start(podName, os.Getenv("POD_NAMESPACE")); err != nil {
		s.log.Errorf("Cron manager failed to start: %v", err)
	}

	s.log.Info("vmail is running")
	return s.waitForShutdown()
}

func (s *Server) waitForShutdown() error {
	defer s.recoverWithJaeger("shutdown")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	cronDone := make(chan struct{})
	go s.wrapGoroutine("cron_shutdown", func() {
		defer close(cronDone)
		s.cronManager.Stop()
	})
	select {
	case <-cronDone:
	case <-shutdownCtx.Done():
		s.log.Warn("Cron manager stop timed out")
	}

	s.services.Close()

	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}
	return nil
}
