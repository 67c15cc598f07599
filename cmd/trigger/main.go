package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kintai/internal/batch"
	"kintai/internal/batch/queue"
	"kintai/internal/platform/config"
	"kintai/internal/platform/logger"
	id "kintai/pkg/domain"
)

// main publishes one recompute trigger by hand. Normal triggers come from the
// upstream scheduler; this is the operator escape hatch for replays.
func main() {
	company := flag.String("company", "", "company UUID")
	period := flag.String("period", "", "period key (YYYY-MM)")
	employees := flag.String("employees", "", "comma-separated employee UUIDs")
	flag.Parse()

	if *company == "" || *period == "" || *employees == "" {
		flag.Usage()
		os.Exit(2)
	}

	job := batch.Job{RunID: id.NewRunID(), PeriodKey: *period}

	companyID, err := id.ParseCompanyID(*company)
	if err != nil {
		fail("invalid company id: %v", err)
	}
	job.CompanyID = companyID

	for _, raw := range strings.Split(*employees, ",") {
		employeeID, err := id.ParseEmployeeID(strings.TrimSpace(raw))
		if err != nil {
			fail("invalid employee id %q: %v", raw, err)
		}
		job.Employees = append(job.Employees, employeeID)
	}

	cfg := config.FromEnv()
	if len(cfg.KafkaBrokers) == 0 {
		fail("KINTAI_KAFKA_BROKERS is not set")
	}

	publisher, err := queue.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic,
		queue.WithPublisherLogger(logger.New()))
	if err != nil {
		fail("create publisher: %v", err)
	}
	defer publisher.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := publisher.Publish(ctx, job); err != nil {
		fail("publish trigger: %v", err)
	}

	fmt.Printf("published run %s for %s %s (%d employees)\n",
		job.RunID, *company, *period, len(job.Employees))
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
