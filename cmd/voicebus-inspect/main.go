// voicebus-inspect is a read-only diagnostic tool: it connects to the
// session bus, enumerates speech providers and their voices, and exits;
// with --watch it keeps printing the aggregate on every change until
// interrupted.
// It is not the speech-dispatcher-style command-line front-end spec §1
// places out of scope; it exists only to debug a running session bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/voicebus/voicebus/internal/registry"
)

func main() {
	_ = godotenv.Load()

	var (
		watch   = flag.BoolP("watch", "w", false, "keep running and print aggregate voice changes")
		timeout = flag.DurationP("timeout", "t", 10*time.Second, "registry init timeout")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, *timeout)
	defer initCancel()

	reg, err := registry.Get(initCtx)
	if err != nil {
		logrus.WithError(err).Fatal("voicebus-inspect: could not acquire registry")
	}

	printProviders(reg)

	if !*watch {
		return
	}

	unsubscribe := reg.SubscribeVoicesChanged(func() {
		fmt.Println()
		fmt.Println("--- aggregate voices changed ---")
		printProviders(reg)
	})
	defer unsubscribe()

	fmt.Println()
	fmt.Println("watching for provider changes, press CTRL-C to exit...")
	<-ctx.Done()
}

func printProviders(reg *registry.Registry) {
	providers := reg.Providers()
	if len(providers) == 0 {
		fmt.Println("no speech providers found on the session bus")
		return
	}
	for _, p := range providers {
		fmt.Printf("%s  (%s)  activatable=%v\n", p.Identifier(), p.Name(), p.IsActivatable())
		for _, v := range p.Voices() {
			fmt.Printf("  - %-24s langs=%-20s format=%s\n", v.Identifier, strings.Join(v.Languages, ","), v.OutputFormat)
		}
	}
}
