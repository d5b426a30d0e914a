package generator

// Config drives the demo data generator.
type Config struct {
	NumParties      int
	NumTransactions int
	ReviewChance    float64
	Password        string
	Seed            int64
}

// DefaultConfig returns baseline settings for a small demo environment.
func DefaultConfig() Config {
	return Config{
		NumParties:      25,
		NumTransactions: 120,
		ReviewChance:    0.7,
		Password:        "demo-password",
		Seed:            42,
	}
}
