package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "dispatch",
	Pass: "dispatch",
	Name: "dispatch_db",
}

var defaultRedis = Redis{
	Addr: "127.0.0.1:6379",
}

var defaultKafka = Kafka{
	Brokers:     nil,
	EventsTopic: "delivery-events",
	NotifyTopic: "dispatch-notifications",
	GroupID:     "service-dispatch-worker",
}

var defaultGateway = Gateway{
	PincodeBaseURL: "",
	MaxAttempts:    4,
	BaseDelay:      150 * time.Millisecond,
	MaxDelay:       2 * time.Second,
}

var defaultMatching = Matching{
	RadiusKm:      10,
	MaxAttempts:   3,
	AcceptTTL:     5 * time.Minute,
	RetryBackoff:  time.Minute,
	BroadcastSize: 1,
	SweepInterval: 30 * time.Second,
}

var defaultPricing = Pricing{
	PerKmRate: "8.50",
	PerKgRate: "2.00",
	MinCharge: "30.00",
}

var defaultBidding = Bidding{
	WindowMinutes:           15,
	MaxBidsPerDelivery:      25,
	MaxActiveBidsPerPartner: 5,
	MinBidPercent:           70,
	MaxBidPercent:           130,
	AutoSelectLowest:        true,
	AutoSelectAfterMinutes:  10,
	RetryWindowOnNoBids:     true,
}

// DefaultPort returns the default port.
func DefaultPort() int { return defaultPort }

// DefaultDB returns the default database settings.
func DefaultDB() DB { return defaultDB }

// DefaultRedis returns the default Redis settings.
func DefaultRedis() Redis { return defaultRedis }

// DefaultKafka returns the default Kafka settings.
func DefaultKafka() Kafka { return defaultKafka }

// DefaultGateway returns the default pincode gateway settings.
func DefaultGateway() Gateway { return defaultGateway }

// DefaultMatching returns the default dispatcher settings.
func DefaultMatching() Matching { return defaultMatching }

var defaultRateLimit = RateLimit{
	Enabled:    false,
	Rate:       50,
	Burst:      100,
	TTL:        10 * time.Minute,
	MaxBuckets: 100000,
}

// DefaultRateLimit returns the default HTTP throttle settings.
func DefaultRateLimit() RateLimit { return defaultRateLimit }

// DefaultPricing returns the default rate card.
func DefaultPricing() Pricing { return defaultPricing }

// DefaultBidding returns the default auction policy.
func DefaultBidding() Bidding { return defaultBidding }
