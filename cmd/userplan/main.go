package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/sungminna/marketer/internal/adapter/repo"
	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/infra"
	"github.com/sungminna/marketer/internal/service"
)

// Admin tool: assigns a billing plan to a user. Limits follow the plan's
// rate card; current-month usage is preserved.
func main() {
	var (
		idFlag   string
		planFlag string
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update")
	flag.StringVar(&planFlag, "plan", "", "plan to assign (free, starter, pro, enterprise)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	plan := domain.Plan(strings.TrimSpace(strings.ToLower(planFlag)))

	if userID == "" {
		exitWithError(errors.New("-id is required"))
	}
	switch plan {
	case domain.PlanFree, domain.PlanStarter, domain.PlanPro, domain.PlanEnterprise:
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", plan))
	}

	_ = godotenv.Load()
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger(os.Getenv("APP_ENV"))
	quotas := service.NewQuotaService(repo.NewQuotaRepository(pool), logger)

	quota, err := quotas.UpdateQuota(ctx, userID, plan)
	if err != nil {
		exitWithError(fmt.Errorf("update plan: %w", err))
	}

	fmt.Printf("user %s is now on plan %s (images/month: %d, video seconds/month: %d, cost cap: $%.2f)\n",
		quota.UserID, quota.Plan, quota.MonthlyImageLimit, quota.MonthlyVideoLimit, quota.MonthlyCostLimit)
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "userplan:", err)
	os.Exit(1)
}
