// order-tail follows the order-placed topic and prints each order as it arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"ms-storefront/internal/config"
	"ms-storefront/internal/kafka"
	"ms-storefront/internal/logger"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	log, err := logger.New(logger.Options{MinLevel: logger.ParseLevel(cfg.Log.Level)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	groupID := os.Getenv("KAFKA_GROUP_ID")
	if groupID == "" {
		groupID = "storefront-order-tail"
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic, groupID, log)
	defer consumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = consumer.Run(ctx, func(e kafka.OrderEvent) {
		o := e.Order
		fmt.Printf("%s  %s  %-16s  %d items  %.2f\n", o.PlacedAt.Format("2006-01-02 15:04:05"), o.ID, o.Phone, len(o.Items), o.Total)
		for _, item := range o.Items {
			fmt.Printf("    %-40s %3d x %10.2f\n", item.Name, item.Quantity, item.UnitPrice)
		}
	})
	if err != nil {
		log.Fatal("KAFKA", err.Error())
	}
}
