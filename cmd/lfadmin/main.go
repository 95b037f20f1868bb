// Command lfadmin is the operator tool of the lostfound core.
//
//	lfadmin activate -email user@school.edu
//	lfadmin create-admin -email admin@school.edu -name "Jane Admin"
//	lfadmin requeue -older 5m -limit 100
//
// Server configuration flags (-d, -mail, ...) and -c/-config apply as well.
package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/lostfound/internal/admin"
	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server"
	"github.com/dmitrijs2005/lostfound/internal/server/config"
	"github.com/dmitrijs2005/lostfound/internal/server/delivery"
	"github.com/dmitrijs2005/lostfound/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	logger, err := logging.NewJSON(os.Stderr, cfg.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}

	db, rm, err := server.OpenDatabase(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	sender, err := server.NewMailSender(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	queue := &admin.Collector{}
	users := services.NewUserService(db, rm, cfg, queue, logger)
	contacts := services.NewContactService(db, rm, cfg, queue, logger)
	worker := delivery.NewWorker(sender, rm.ContactLogs(db), logger, delivery.Options{
		Timeout:     cfg.DeliveryTimeout,
		MaxAttempts: cfg.DeliveryMaxAttempts,
	})

	app := admin.NewApp(users, contacts, worker, queue, os.Stdin, os.Stdout)
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		log.Printf("%v", err)
		db.Close()
		os.Exit(1)
	}

}
