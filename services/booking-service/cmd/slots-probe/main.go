// Command slots-probe queries the availability gRPC service from a shell.
//
//	slots-probe -provider-id P -service-id S -date 2026-03-02
//	slots-probe -provider-id P -start 2026-03-02T13:00:00Z -duration 30
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptbook/libs/grpcx"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/apptbook/services/booking-service/internal/availabilityclient"
)

func main() {
	var (
		addr     = flag.String("addr", getenv("BOOKING_GRPC_ADDR", "localhost:9093"), "booking-service grpc address")
		provider = flag.String("provider-id", getenv("PROVIDER_ID", ""), "provider id")
		service  = flag.String("service-id", getenv("SERVICE_ID", ""), "service id (slot listing)")
		date     = flag.String("date", time.Now().Format("2006-01-02"), "provider-local date (slot listing)")
		tz       = flag.String("timezone", "", "IANA timezone; empty uses the provider's")
		start    = flag.String("start", "", "RFC3339 start; switches to a single-slot check")
		duration = flag.Int("duration", 30, "duration in minutes (slot check)")
		exclude  = flag.String("exclude", "", "appointment id to ignore (slot check)")
		timeout  = flag.Duration("timeout", 5*time.Second, "overall timeout")
	)
	flag.Parse()

	if strings.TrimSpace(*provider) == "" {
		fatal("PROVIDER_ID is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := availabilityclient.Dial(ctx, *addr, grpcx.DialOptions{Timeout: *timeout, Block: true})
	if err != nil {
		fatal(err.Error())
	}
	defer client.Close()

	var out any
	if strings.TrimSpace(*start) != "" {
		at, err := time.Parse(time.RFC3339, *start)
		if err != nil {
			fatal("start must be RFC3339")
		}
		out, err = client.IsSlotAvailable(ctx, availability.SlotCheck{
			ProviderID:           *provider,
			Start:                at,
			DurationMinutes:      *duration,
			ExcludeAppointmentID: *exclude,
		})
		if err != nil {
			fatal(err.Error())
		}
	} else {
		if strings.TrimSpace(*service) == "" {
			fatal("SERVICE_ID is required for slot listing")
		}
		out, err = client.GetAvailableSlots(ctx, availability.SlotQuery{
			ProviderID: *provider,
			ServiceID:  *service,
			Date:       *date,
			Timezone:   *tz,
		})
		if err != nil {
			fatal(err.Error())
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
