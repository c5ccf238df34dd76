package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/config"
	"tutor-points-service/internal/domain"
	"tutor-points-service/internal/logger"
)

// NewSeedCmd provisions the badge catalogue, an administrator and demo content.
func NewSeedCmd(configPath *string) *cobra.Command {
	var adminEmail, adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed badges, an administrator and a demo provider with one lesson",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			rt, err := buildRuntime(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()
			return seed(cmd.Context(), rt.svc, log, adminEmail, adminPassword)
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@example.com", "administrator email")
	cmd.Flags().StringVar(&adminPassword, "admin-password", os.Getenv("ADMIN_PASSWORD"), "administrator password")
	return cmd
}

func seed(ctx context.Context, svc *app.Services, log *logger.Logger, adminEmail, adminPassword string) error {
	if adminPassword != "" {
		admin, err := provisionOnce(ctx, svc, log, app.Registration{
			FirstName: "Site",
			LastName:  "Admin",
			Email:     adminEmail,
			Password:  adminPassword,
			Role:      domain.RoleAdministrator,
		})
		if err != nil {
			return err
		}
		if admin != nil {
			log.Info("administrator provisioned", "account_id", admin.ID)
		}
	} else {
		log.Warn("no admin password given, skipping administrator")
	}

	provider, err := provisionOnce(ctx, svc, log, app.Registration{
		FirstName:      "Demo",
		LastName:       "Teacher",
		Email:          "teacher@example.com",
		Password:       "teacher-demo",
		Role:           domain.RoleProvider,
		Specialization: "Grammar",
	})
	if err != nil || provider == nil {
		return err
	}

	lesson, err := svc.Lessons.CreateLesson(ctx, provider.ID, app.NewLesson{
		Title:     "Articles: a, an, the",
		Level:     domain.LevelA2,
		Category:  "grammar",
		Published: true,
	})
	if err != nil {
		return err
	}
	quiz, err := svc.Lessons.CreateQuiz(ctx, provider.ID, lesson.ID, app.NewQuiz{
		Title:        "Articles check",
		PassingScore: 70,
		PointsReward: 30,
		Questions: []app.NewQuestion{
			{Prompt: "I saw ___ elephant. (A) an (B) a (C) the", Points: 1, CorrectAnswer: "A"},
			{Prompt: "___ sun is hot. (A) A (B) An (C) The", Points: 1, CorrectAnswer: "C"},
			{Prompt: "She is ___ teacher. (A) an (B) a (C) the", Points: 1, CorrectAnswer: "B"},
		},
	})
	if err != nil {
		return err
	}
	log.Info("demo content seeded", "provider_id", provider.ID, "lesson_id", lesson.ID, "quiz_id", quiz.ID)
	return nil
}

// provisionOnce returns nil when the email is already registered.
func provisionOnce(ctx context.Context, svc *app.Services, log *logger.Logger, in app.Registration) (*domain.Account, error) {
	acc, err := svc.Accounts.Provision(ctx, in)
	if domain.IsKind(err, domain.KindConflict) {
		log.Info("account already present", "email", in.Email)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}
