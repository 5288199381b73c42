package task

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestDeliveryAttempts(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{
			name:    "first delivery has no x-death",
			headers: amqp.Table{},
			want:    0,
		},
		{
			name: "counts rejections from the work queue",
			headers: amqp.Table{
				"x-death": []interface{}{
					amqp.Table{"queue": queueName, "reason": "rejected", "count": int64(2)},
				},
			},
			want: 2,
		},
		{
			name: "ignores other queues",
			headers: amqp.Table{
				"x-death": []interface{}{
					amqp.Table{"queue": retryQueueName, "reason": "expired", "count": int64(5)},
				},
			},
			want: 0,
		},
		{
			name: "skips to the work queue entry",
			headers: amqp.Table{
				"x-death": []interface{}{
					amqp.Table{"queue": retryQueueName, "reason": "expired", "count": int64(1)},
					amqp.Table{"queue": queueName, "reason": "rejected", "count": int64(1)},
				},
			},
			want: 1,
		},
		{
			name: "malformed header tolerated",
			headers: amqp.Table{
				"x-death": "not-a-list",
			},
			want: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := amqp.Delivery{Headers: tc.headers}
			if got := deliveryAttempts(msg); got != tc.want {
				t.Fatalf("deliveryAttempts() = %d, want %d", got, tc.want)
			}
		})
	}
}
