package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/FS-PART-2/8-StudyForest-team2-BE/internal/util"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/pkg/store"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/app"
	"github.com/FS-PART-2/8-StudyForest-team2-BE/services/study/internal/config"
)

var CLI struct {
	Config   string   `help:"Study service config file." type:"path" env:"STUDY_CONFIG" default:"config.yaml"`
	DSN      string   `help:"Database URL; overrides the config file." env:"DATABASE_URL"`
	Studies  int      `help:"Number of demo studies to create." default:"3"`
	Password string   `help:"Password shared by every seeded study." default:"forest-pass"`
	Habits   []string `help:"Habit titles created for today." default:"Read 30 pages,Morning run,Drink water"`
	LogLevel string   `help:"Log level." default:"info" enum:"debug,info,warn,error"`
}

func main() {
	_ = godotenv.Load()
	kctx := kong.Parse(&CLI,
		kong.Name("seed"),
		kong.Description("Seed StudyForest demo data"),
		kong.UsageOnError(),
	)
	logger := util.InitLogger(CLI.LogLevel)

	dsn := strings.TrimSpace(CLI.DSN)
	if dsn == "" {
		cfg, err := config.Load(CLI.Config)
		kctx.FatalIfErrorf(err, "load config")
		dsn = cfg.DatabaseURL
	}
	db, err := store.NewGormStore(dsn)
	kctx.FatalIfErrorf(err, "open store")
	defer db.Close()

	appCore, err := app.New(app.Config{Store: db})
	kctx.FatalIfErrorf(err, "init app")

	opts := seedOptions{Studies: CLI.Studies, Password: CLI.Password, Habits: CLI.Habits}
	ids, err := seed(util.ContextWithLogger(context.Background(), logger), appCore, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "studies", ids)
}

type seedOptions struct {
	Studies  int
	Password string
	Habits   []string
}

var demoEmojis = []string{"🔥", "👍", "🌱"}

// seed creates demo studies with today's habits, a few reactions and
// points. The first habit of every study is marked done.
func seed(ctx context.Context, a *app.App, opts seedOptions) ([]int64, error) {
	if opts.Studies <= 0 {
		return nil, fmt.Errorf("studies must be positive, got %d", opts.Studies)
	}
	logger := util.LoggerFromContext(ctx)
	ids := make([]int64, 0, opts.Studies)
	for i := 1; i <= opts.Studies; i++ {
		study, err := a.CreateStudy(ctx, app.CreateStudyInput{
			Nick:          fmt.Sprintf("member%d", i),
			Name:          fmt.Sprintf("Study forest %d", i),
			Content:       "Seeded demo study",
			Password:      opts.Password,
			CheckPassword: opts.Password,
		})
		if err != nil {
			return ids, fmt.Errorf("create study %d: %w", i, err)
		}
		ids = append(ids, study.ID)

		if len(opts.Habits) > 0 {
			created, err := a.CreateTodayBulk(ctx, study.ID, opts.Password, opts.Habits)
			if err != nil {
				return ids, fmt.Errorf("habits for study %d: %w", study.ID, err)
			}
			if len(created.Habits) > 0 {
				if _, err := a.ToggleDone(ctx, created.Habits[0].HabitID, opts.Password); err != nil {
					return ids, fmt.Errorf("toggle habit: %w", err)
				}
			}
		}
		for j, sym := range demoEmojis {
			if _, err := a.IncrementEmoji(ctx, study.ID, app.EmojiRef{Symbol: sym}, i+j); err != nil {
				return ids, fmt.Errorf("emoji for study %d: %w", study.ID, err)
			}
		}
		if _, err := a.AddPoint(ctx, study.ID, opts.Password, 10*i); err != nil {
			return ids, fmt.Errorf("points for study %d: %w", study.ID, err)
		}
		logger.Info("seeded study", "study_id", study.ID, "name", study.Name)
	}
	return ids, nil
}
