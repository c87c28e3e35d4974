package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/urfave/cli/v2"

	"square/internal/datastore"
	"square/internal/models"
	"square/internal/services"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	app := &cli.App{
		Name: "migrate",
		Commands: []*cli.Command{
			commandMigration(),
			commandConfigMigration(),
			commandTaskMigration(),
			commandBootstrapAdmin(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commandMigration() *cli.Command {
	return &cli.Command{
		Name: "migrate",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableUser(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableConfig(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableTask(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableUserTask(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableUserReward(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTablePointsTransaction(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			err = datastore.CreateTableAdmin(ctx, db)
			if err != nil {
				log.Fatal(err)
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

// insert default configs to db
func commandConfigMigration() *cli.Command {
	return &cli.Command{
		Name:        "migrate-config",
		Description: "Insert default configs to db",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			configs := []models.Config{
				{Key: services.CONFIG_SERVER_MODE, Value: "production"},
				{Key: services.CONFIG_LEADERBOARD_LIMIT, Value: "20"},
				{Key: services.CONFIG_DAILY_CHECK_IN_POINTS, Value: "10"},
				{Key: services.CONFIG_STREAK_BONUS_PERCENT, Value: "10"},
				{Key: services.CONFIG_MAX_CONSECUTIVE_DAYS, Value: "7"},
				{Key: services.CONFIG_HOLDINGS_API_BASE_URL, Value: ""},
				{Key: services.CONFIG_COLLABORATOR_API_BASE_URL, Value: ""},
				{Key: "CRONJOB_TIME_LEADERBOARD", Value: "@every 5m"},
				{Key: "ADMIN_CHAT_ID", Value: ""},
			}

			for _, config := range configs {
				err = datastore.InsertConfig(ctx, db, config)
				if err != nil {
					log.Println(err)
				}
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

// insert the built-in tasks, skipping any id that already exists
func commandTaskMigration() *cli.Command {
	return &cli.Command{
		Name:        "migrate-tasks",
		Description: "Insert default tasks to db",
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			now := time.Now()

			tasks := []*models.Task{
				{
					ID:           "daily_post",
					Title:        "Daily Post",
					Description:  "Publish at least one post today",
					TaskType:     models.TaskTypeDaily,
					PointsReward: 20,
					Requirements: &models.TaskRequirements{
						MinPosts: 1,
					},
					Enabled:   true,
					CreatedAt: now,
					UpdatedAt: now,
				},
				{
					ID:           "weekly_article",
					Title:        "Weekly Article",
					Description:  "Publish a long-form article this week",
					TaskType:     models.TaskTypeWeekly,
					PointsReward: 100,
					Requirements: &models.TaskRequirements{
						MinArticles: 1,
					},
					Enabled:   true,
					CreatedAt: now,
					UpdatedAt: now,
				},
				{
					ID:           "social_engagement",
					Title:        "Social Engagement",
					Description:  "Like, comment and share to support the community",
					TaskType:     models.TaskTypeDaily,
					PointsReward: 15,
					Requirements: &models.TaskRequirements{
						MinLikes:    5,
						MinComments: 2,
						MinShares:   1,
					},
					Enabled:   true,
					CreatedAt: now,
					UpdatedAt: now,
				},
			}

			for _, task := range tasks {
				inserted, err := datastore.InsertTask(ctx, db, task)
				if err != nil {
					log.Println(err)
					continue
				}
				if !inserted {
					fmt.Println("skipped", task.ID)
				}
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

// seed the first admin; a no-op once any admin exists
func commandBootstrapAdmin() *cli.Command {
	return &cli.Command{
		Name: "bootstrap-admin",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "user-id",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			ctx := context.Background()
			db, err := getDb()
			if err != nil {
				log.Fatal(err)
			}

			created, err := datastore.BootstrapAdmin(ctx, db, c.Int64("user-id"))
			if err != nil {
				log.Fatal(err)
			}
			if !created {
				fmt.Println("admin already exists, nothing to do")
				return nil
			}

			fmt.Println("Migration success")

			return nil
		},
	}
}

func getDb() (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(os.Getenv("DB_DSN")),
		pgdriver.WithPassword(os.Getenv("DB_PASSWORD")),
	))

	db := bun.NewDB(sqldb, pgdialect.New())
	return db, nil
}
