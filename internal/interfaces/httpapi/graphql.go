package httpapi

import (
	"context"
	"strconv"
	"strings"

	"transfertracker/internal/application"
	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
	graphql "github.com/graph-gophers/graphql-go"
)

const schemaSDL = `
schema {
	query: Query
}

scalar BigInt
scalar Bytes

type Transfer {
	id: ID!
	from: Bytes!
	to: Bytes!
	value: BigInt!
	timestamp: BigInt!
}

input Transfer_filter {
	to: Bytes
	from: Bytes
}

type Query {
	transfers(where: Transfer_filter): [Transfer!]!
	transfer(id: ID!): Transfer
}
`

// BigInt is an arbitrary precision integer carried as a decimal string.
type BigInt string

func (BigInt) ImplementsGraphQLType(name string) bool { return name == "BigInt" }

func (b *BigInt) UnmarshalGraphQL(input interface{}) error {
	switch v := input.(type) {
	case string:
		*b = BigInt(v)
	case int32:
		*b = BigInt(strconv.FormatInt(int64(v), 10))
	default:
		return errors.Newf("wrong type for BigInt: %T", input)
	}
	return nil
}

// Bytes is a hex string such as an address or transaction hash.
type Bytes string

func (Bytes) ImplementsGraphQLType(name string) bool { return name == "Bytes" }

func (b *Bytes) UnmarshalGraphQL(input interface{}) error {
	v, ok := input.(string)
	if !ok {
		return errors.Newf("wrong type for Bytes: %T", input)
	}
	*b = Bytes(v)
	return nil
}

type transferFilter struct {
	To   *Bytes
	From *Bytes
}

type queryResolver struct {
	store   application.TransferReader
	metrics *Metrics
}

func newSchema(store application.TransferReader, metrics *Metrics) (*graphql.Schema, error) {
	return graphql.ParseSchema(schemaSDL, &queryResolver{store: store, metrics: metrics})
}

// Transfers folds filter addresses to lowercase, the form they are stored in.
func (r *queryResolver) Transfers(ctx context.Context, args struct{ Where *transferFilter }) ([]*transferResolver, error) {
	var filter application.TransferQueryFilter
	if args.Where != nil {
		if args.Where.To != nil {
			filter.To = strings.ToLower(string(*args.Where.To))
		}
		if args.Where.From != nil {
			filter.From = strings.ToLower(string(*args.Where.From))
		}
	}
	r.metrics.IncQuery()
	transfers, err := r.store.QueryTransfers(ctx, filter)
	if err != nil {
		r.metrics.IncQueryErr()
		return nil, errors.Wrap(err, "query transfers")
	}
	resolvers := make([]*transferResolver, 0, len(transfers))
	for _, transfer := range transfers {
		resolvers = append(resolvers, &transferResolver{transfer: transfer})
	}
	return resolvers, nil
}

func (r *queryResolver) Transfer(ctx context.Context, args struct{ ID graphql.ID }) (*transferResolver, error) {
	r.metrics.IncQuery()
	transfer, ok, err := r.store.GetTransfer(ctx, strings.ToLower(string(args.ID)))
	if err != nil {
		r.metrics.IncQueryErr()
		return nil, errors.Wrapf(err, "get transfer %s", args.ID)
	}
	if !ok {
		return nil, nil
	}
	return &transferResolver{transfer: transfer}, nil
}

type transferResolver struct {
	transfer domain.Transfer
}

func (t *transferResolver) ID() graphql.ID { return graphql.ID(t.transfer.ID) }

func (t *transferResolver) From() Bytes { return Bytes(t.transfer.From) }

func (t *transferResolver) To() Bytes { return Bytes(t.transfer.To) }

func (t *transferResolver) Value() BigInt {
	if t.transfer.Value == nil {
		return "0"
	}
	return BigInt(t.transfer.Value.String())
}

func (t *transferResolver) Timestamp() BigInt {
	return BigInt(strconv.FormatUint(t.transfer.Timestamp, 10))
}
