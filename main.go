package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/orderbell-io/orderbell-go/alert"
	"github.com/orderbell-io/orderbell-go/bell"
	"github.com/orderbell-io/orderbell-go/devhub"
	"github.com/orderbell-io/orderbell-go/tool"
	"github.com/orderbell-io/orderbell-go/types"
)

func main() {
	cfg := tool.SetFlags()
	tool.InitLogger(cfg.Log)

	if _, err := tool.LoadConfig(cfg.UseConfigPath); err != nil {
		tool.DefaultLogger.Fatalf("%v", err)
	}
	// Flag overrides write through to the process-wide config so everything
	// downstream observes the effective values, not the file's.
	appCfg := tool.GetCurrentConfig()
	if cfg.UseServerURL != "" {
		appCfg.ServerURL = cfg.UseServerURL
	}
	if cfg.UseProfile != "" {
		appCfg.Profile = cfg.UseProfile
	}

	if cfg.UseDevhub {
		hub := devhub.NewServer(cfg.UseToken)
		go func() {
			if err := hub.Run(appCfg.DevhubPort); err != nil {
				tool.DefaultLogger.Fatalf("Devhub startup failed: %v", err)
			}
		}()
		appCfg.ServerURL = fmt.Sprintf("ws://127.0.0.1:%d/ws", appCfg.DevhubPort)
		// Give the listener a moment before dialing it.
		time.Sleep(100 * time.Millisecond)
	}

	if !cfg.SkipProbe {
		if err := tool.ProbeServer(appCfg.ServerURL); err != nil {
			tool.DefaultLogger.Warnf("[Probe] %v", err)
		}
	}

	var tones alert.TonePlayer
	var speaker alert.Speaker
	if !cfg.UseMute {
		if tp, err := alert.NewCommandTonePlayer(appCfg.AudioCommand); err != nil {
			tool.DefaultLogger.Warnf("Tones disabled: %v", err)
		} else {
			tones = tp
		}
		if sp, err := alert.NewCommandSpeaker(appCfg.SpeechCommand); err != nil {
			tool.DefaultLogger.Warnf("Speech disabled: %v", err)
		} else {
			speaker = sp
		}
	}

	svc, err := bell.New(bell.Options{
		ServerURL:      appCfg.ServerURL,
		SettingsDBPath: appCfg.SettingsDBPath,
		Profile:        appCfg.Profile,
		BackoffBase:    time.Duration(appCfg.BackoffBaseMs) * time.Millisecond,
		MaxAttempts:    appCfg.MaxReconnects,
		PingInterval:   time.Duration(appCfg.PingIntervalSec) * time.Second,
		Tones:          tones,
		Speaker:        speaker,
	})
	if err != nil {
		tool.DefaultLogger.Fatalf("Service startup failed: %v", err)
	}

	// Console listener: prints toasts and keeps an unread counter, the way
	// an indicator UI would.
	var unread atomic.Int64
	unsubscribe := svc.Subscribe(
		func(e types.EnrichedEvent) {
			n := unread.Add(1)
			tool.DefaultLogger.Infof("[Bell] %s (unread: %d)", e.ToastText, n)
		},
		func(s types.ConnectionState) {
			tool.DefaultLogger.Infof("[Bell] Connection %s", s)
		},
	)
	defer unsubscribe()

	svc.JoinRoom("admin_orders")

	if err := svc.Initialize(cfg.UseToken); err != nil {
		tool.DefaultLogger.Errorf("Initial connect failed: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	tool.DefaultLogger.Info("Shutting down")
	svc.Shutdown()
}
