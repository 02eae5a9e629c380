package zonestore

import (
	"context"
	"fmt"

	"authdns/wire"
)

// SeedDefaultZone populates domain with a minimal apex zone the first
// time the store has no rows for it at all: A records for the apex and
// the conventional www/api/mail/ns1/ns2 hosts, an MX pointed at mail, an
// SPF TXT, one NS record per nsTargets, and a synthesized SOA. A blank
// ip disables seeding entirely; an already-populated domain is left
// untouched. Mirrors the zero-config demo boot original_source/'s
// init_db performs on first startup.
func SeedDefaultZone(ctx context.Context, store Store, domain, ip string, nsTargets []string) error {
	if ip == "" {
		return nil
	}

	existing, err := store.GetAll(ctx, domain)
	if err != nil {
		return fmt.Errorf("zonestore: seed default zone: %w", err)
	}

	if len(existing) > 0 {
		return nil
	}

	if len(nsTargets) == 0 {
		nsTargets = []string{"ns1." + domain, "ns2." + domain}
	}

	const defaultTTL = 3600

	hosts := []string{domain, "www." + domain, "api." + domain, "mail." + domain, "ns1." + domain, "ns2." + domain}
	for _, host := range hosts {
		if err := store.Put(ctx, host, wire.TypeA, ip, defaultTTL); err != nil {
			return fmt.Errorf("zonestore: seed %s A: %w", host, err)
		}
	}

	if err := store.Put(ctx, domain, wire.TypeMX, fmt.Sprintf("10 mail.%s", domain), defaultTTL); err != nil {
		return fmt.Errorf("zonestore: seed %s MX: %w", domain, err)
	}

	if err := store.Put(ctx, domain, wire.TypeTXT, "v=spf1 a mx ~all", defaultTTL); err != nil {
		return fmt.Errorf("zonestore: seed %s TXT: %w", domain, err)
	}

	for _, ns := range nsTargets {
		if err := store.Put(ctx, domain, wire.TypeNS, ns, defaultTTL); err != nil {
			return fmt.Errorf("zonestore: seed %s NS: %w", domain, err)
		}
	}

	soa := fmt.Sprintf("%s hostmaster.%s 1 10800 3600 604800 86400", nsTargets[0], domain)
	if err := store.Put(ctx, domain, wire.TypeSOA, soa, defaultTTL); err != nil {
		return fmt.Errorf("zonestore: seed %s SOA: %w", domain, err)
	}

	return nil
}
