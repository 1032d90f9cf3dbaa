package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"auction-engine/internal/domain"

	"github.com/segmentio/kafka-go"
)

// PurchaseOrderRequester hands approved auctions to the order subsystem. The
// reference travels as the message key so the consumer can drop replays.
type PurchaseOrderRequester struct {
	writer messageWriter
}

func NewPurchaseOrderRequester(brokers []string, topic string) *PurchaseOrderRequester {
	return &PurchaseOrderRequester{writer: newWriter(brokers, topic, kafka.RequireAll)}
}

func (k *PurchaseOrderRequester) RequestPurchaseOrder(ctx context.Context, req *domain.PurchaseOrderRequest) (string, error) {
	msg, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.Reference),
		Value: msg,
		Time:  req.ApprovedAt,
		Headers: []kafka.Header{
			{Key: "auction_id", Value: []byte(req.AuctionID)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("publish purchase order %s: %w", req.Reference, err)
	}
	return req.Reference, nil
}

func (k *PurchaseOrderRequester) Close() error {
	return k.writer.Close()
}
