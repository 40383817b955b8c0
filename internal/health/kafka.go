package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// GroupStatus summarises one consumer group.
type GroupStatus struct {
	Group   string
	State   string
	Members int
	Lag     int64
}

// Healthy reports whether the group is consuming: it must be in the Stable
// state with at least one member.
func (g GroupStatus) Healthy() bool {
	return g.State == "Stable" && g.Members > 0
}

// GroupDescriber reports the state and lag of a consumer group.
type GroupDescriber interface {
	DescribeGroup(ctx context.Context, group string) (GroupStatus, error)
	Close()
}

// KafkaAdmin describes consumer groups through the Kafka admin API.
type KafkaAdmin struct {
	client *kgo.Client
	adm    *kadm.Client
}

func NewKafkaAdmin(brokers []string) (*KafkaAdmin, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaAdmin{client: client, adm: kadm.NewClient(client)}, nil
}

func (k *KafkaAdmin) DescribeGroup(ctx context.Context, group string) (GroupStatus, error) {
	described, err := k.adm.DescribeGroups(ctx, group)
	if err != nil {
		return GroupStatus{}, fmt.Errorf("describe group %s: %w", group, err)
	}
	d, ok := described[group]
	if !ok {
		return GroupStatus{}, fmt.Errorf("group %s not returned by broker", group)
	}
	if d.Err != nil {
		return GroupStatus{}, fmt.Errorf("describe group %s: %w", group, d.Err)
	}
	st := GroupStatus{Group: group, State: d.State, Members: len(d.Members)}

	lags, err := k.adm.Lag(ctx, group)
	if err != nil {
		return st, fmt.Errorf("group %s lag: %w", group, err)
	}
	gl, ok := lags[group]
	if !ok {
		return st, nil
	}
	if gl.DescribeErr != nil {
		return st, fmt.Errorf("group %s lag: %w", group, gl.DescribeErr)
	}
	if gl.FetchErr != nil {
		return st, fmt.Errorf("group %s offsets: %w", group, gl.FetchErr)
	}
	st.Lag = gl.Lag.Total()
	return st, nil
}

func (k *KafkaAdmin) Close() {
	k.adm.Close()
}
