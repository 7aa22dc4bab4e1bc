package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/payvault/internal/config"
	"github.com/smallbiznis/payvault/internal/escrow"
	"github.com/smallbiznis/payvault/internal/events"
	"github.com/smallbiznis/payvault/internal/logger"
	"github.com/smallbiznis/payvault/internal/migration"
	"github.com/smallbiznis/payvault/internal/observability"
	"github.com/smallbiznis/payvault/internal/payment"
	"github.com/smallbiznis/payvault/internal/provider"
	"github.com/smallbiznis/payvault/internal/server"
	"github.com/smallbiznis/payvault/internal/withdrawal"
	"github.com/smallbiznis/payvault/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return migration.RunMigrations(sqlDB)
		}),
		observability.Module,
		events.Module,
		provider.Module,
		escrow.Module,
		withdrawal.Module,
		payment.Module,
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server, engine *gin.Engine) {
			s.RegisterRoutes(engine)
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}
