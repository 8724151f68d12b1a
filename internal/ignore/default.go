package ignore

// DefaultRules are hosts that never get a synthesized HSTS policy: loopback
// and private development hosts, where pinning HTTPS breaks local servers.
var DefaultRules = []Spec{
	{Exact: "localhost"},
	{Exact: "127.0.0.1"},
	{Exact: "::1"},
	{Pattern: `\.localhost$`},
	{Pattern: `\.(local|test|internal|lan)$`},
	{Pattern: `^10\.\d{1,3}\.\d{1,3}\.\d{1,3}$`},
	{Pattern: `^192\.168\.\d{1,3}\.\d{1,3}$`},
	{Pattern: `^172\.(1[6-9]|2\d|3[01])\.\d{1,3}\.\d{1,3}$`},
}
