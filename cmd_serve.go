package main

import (
	"fmt"
	syslog "log"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	logging "github.com/ipfs/go-log/v2"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cloudmall/storage_market/dao"
	"github.com/cloudmall/storage_market/ledger"
	"github.com/cloudmall/storage_market/market"
	"github.com/cloudmall/storage_market/rpc"
	"github.com/cloudmall/storage_market/service"
	"github.com/cloudmall/storage_market/util"

	_ "net/http/pprof"
)

var cmdServe = &cli.Command{
	Name:  "serve",
	Usage: "Start the market node",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "db",
			Usage: "root:123456@tcp(127.0.0.1:3306)/storage_market",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "127.0.0.1:6379",
		},
		&cli.StringFlag{
			Name:  "listen",
			Value: "127.0.0.1:8721",
			Usage: "rpc listen address",
		},
		&cli.DurationFlag{
			Name:  "sweep-interval",
			Value: 10 * time.Minute,
			Usage: "how often pending settlements are replayed",
		},
		&cli.DurationFlag{
			Name:  "liquidate-interval",
			Value: time.Hour,
			Usage: "how often undercollateralized makers are scanned",
		},
		&cli.Int64Flag{
			Name:  "swap-rate",
			Value: 1,
			Usage: "flat reward-to-collateral conversion rate",
		},
		&cli.StringFlag{
			Name:        "log-level",
			DefaultText: "info",
		},
	},
	Action: func(cctx *cli.Context) error {
		go func() {
			http.ListenAndServe(":6060", nil) //nolint:errcheck
		}()

		ctx := util.ReqContext(cctx)

		ll := cctx.String("log-level")
		if ll == "" {
			ll = "info"
		}
		if err := logging.SetLogLevel("*", ll); err != nil {
			return err
		}
		if err := logging.SetLogLevel("rpc", "error"); err != nil {
			return err
		}

		newLogger := logger.New(
			syslog.New(os.Stdout, "\r\n", syslog.LstdFlags),
			logger.Config{
				SlowThreshold:             1000 * time.Second,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
				Colorful:                  true,
			},
		)

		db, err := gorm.Open(mysql.Open(cctx.String("db")), &gorm.Config{
			Logger: newLogger,
		})
		if err != nil {
			fmt.Println("failed to connect database ", err)
			os.Exit(0)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
		log.Info("sql ping success")

		rds := redis.NewClient(&redis.Options{
			Addr:     cctx.String("redis"),
			Password: "",
			DB:       0,
		})
		defer rds.Close()
		pong, err := rds.Ping(ctx).Result()
		if err != nil {
			return err
		}
		log.Info("redis response ", pong)

		store := ledger.NewStore()
		swapper := ledger.NewFixedRateSwapper(decimal.New(cctx.Int64("swap-rate"), 0))
		publisher := dao.NewPublisher(ctx, rds)
		engine := market.NewEngine(db, store, swapper, market.WithSink(publisher))

		svc := service.NewService(ctx, db, engine,
			cctx.Duration("sweep-interval"), cctx.Duration("liquidate-interval"))
		svc.Start()

		handler := rpc.NewServer(engine, dao.NewDao(ctx, db))
		mux := http.NewServeMux()
		mux.Handle("/rpc/v0", handler)
		server := &http.Server{Addr: cctx.String("listen"), Handler: mux}
		go func() {
			log.Infof("rpc listening on %s", cctx.String("listen"))
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("rpc server:%v", err)
			}
		}()

		<-ctx.Done()

		server.Close()
		svc.Stop()

		os.Exit(0)
		return nil
	},
}
