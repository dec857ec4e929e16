package cache

import "strconv"

// SubdomainKey returns the cache key for a tenant looked up by subdomain.
func SubdomainKey(subdomain string) string {
	return "tenant:subdomain:" + subdomain
}

// IDKey returns the cache key for a tenant looked up by id.
func IDKey(id int64) string {
	return "tenant:id:" + strconv.FormatInt(id, 10)
}
