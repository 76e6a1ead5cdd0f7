package main

import (
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/cloudmall/storage_market/initdb"
	"github.com/cloudmall/storage_market/util"
)

var cmdInitDb = &cli.Command{
	Name:  "initdb",
	Usage: "Create and seed the market database",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "db",
			Usage: "root:123456@tcp(127.0.0.1:3306)/storage_market",
		},
		&cli.StringFlag{
			Name:  "redis",
			Usage: "127.0.0.1:6379",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := util.ReqContext(cctx)

		db, err := gorm.Open(mysql.Open(cctx.String("db")), &gorm.Config{})
		if err != nil {
			fmt.Println("failed to connect database ", err)
			os.Exit(0)
		}

		rds := redis.NewClient(&redis.Options{
			Addr:     cctx.String("redis"),
			Password: "",
			DB:       0,
		})
		defer rds.Close()

		if err := initdb.InitDatabase(ctx, db, rds); err != nil {
			return err
		}
		log.Info("database initialized")
		return nil
	},
}
