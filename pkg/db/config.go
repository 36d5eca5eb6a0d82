package db

// Config carries the connection settings for the billing database. Type
// selects the dialect (postgres, mysql, sqlite); for sqlite, Name is the
// database file path and the network fields are ignored.
type Config struct {
	Type     string
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string

	// Pool settings. Lifetimes are in seconds.
	MaxIdleConn     int
	MaxOpenConn     int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}
