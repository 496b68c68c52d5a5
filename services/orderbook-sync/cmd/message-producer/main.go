package main

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/muhammadchandra19/exchange/pkg/logger"
	messagev1 "github.com/muhammadchandra19/exchange/services/orderbook-sync/internal/domain/message/v1"
	"github.com/segmentio/kafka-go"
)

func main() {
	var (
		brokers       = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		product       = flag.String("product", "BTC-USD", "Product id")
		topicPrefix   = flag.String("topic-prefix", "market.", "Topic prefix, the topic is <prefix><product>")
		delay         = flag.Duration("delay", 100*time.Millisecond, "Delay between messages")
		count         = flag.Int("count", 1000, "Number of messages to send after the snapshot")
		depth         = flag.Int("depth", 20, "Orders per side in each snapshot")
		basePrice     = flag.Float64("base-price", 3945.5, "Base price for orders")
		priceSpread   = flag.Float64("price-spread", 200.0, "Price spread range")
		startSequence = flag.Int64("start-sequence", 1000, "Sequence of the first snapshot")
		gapEvery      = flag.Int("gap-every", 0, "Skip one sequence number every n messages (0 disables)")
		snapshotEvery = flag.Int("snapshot-every", 0, "Send a fresh snapshot every n messages (0 disables)")
		seed          = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	log, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	topic := *topicPrefix + *product

	// Create Kafka writer
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	ctx := context.Background()
	gen := newStreamGenerator(*product, *seed, *startSequence, *basePrice, *priceSpread, *gapEvery)

	log.Info("Sending messages", logger.Field{
		Key:   "brokers",
		Value: *brokers,
	}, logger.Field{
		Key:   "topic",
		Value: topic,
	}, logger.Field{
		Key:   "count",
		Value: *count,
	})

	send := func(msg messagev1.Message) bool {
		value, err := messagev1.Encode(msg)
		if err != nil {
			log.Error(err, logger.Field{Key: "action", Value: "encode_message"})
			return false
		}
		if err := writer.WriteMessages(ctx, kafka.Message{
			Key:   []byte(*product),
			Value: value,
			Headers: []kafka.Header{{
				Key:   messagev1.CorrelationHeader,
				Value: []byte(uuid.NewString()),
			}},
			Time: time.Now(),
		}); err != nil {
			log.Error(err, logger.Field{Key: "action", Value: "write_message"}, logger.Field{Key: "kind", Value: msg.Kind()})
			return false
		}
		return true
	}

	if !send(gen.Snapshot(*depth)) {
		return
	}

	sent := map[messagev1.Kind]int{messagev1.KindSnapshot: 1}
	for i := 0; i < *count; i++ {
		var msg messagev1.Message
		if *snapshotEvery > 0 && i > 0 && i%*snapshotEvery == 0 {
			msg = gen.Snapshot(*depth)
		} else {
			msg = gen.Next()
		}
		if send(msg) {
			sent[msg.Kind()]++
		}

		// Log progress every 100 messages or for the last one
		if (i+1)%100 == 0 || i == *count-1 {
			log.Info("Progress", logger.Field{
				Key:   "sent",
				Value: i + 1,
			}, logger.Field{
				Key:   "sequence",
				Value: gen.seq,
			})
		}

		// Wait before sending next message (except for the last one)
		if i < *count-1 {
			time.Sleep(*delay)
		}
	}

	log.Info("Successfully sent all messages", logger.Field{
		Key:   "by_kind",
		Value: sent,
	})
}
