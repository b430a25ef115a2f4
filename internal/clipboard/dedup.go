package clipboard

import "context"

// Guard is the in-process half of duplicate suppression. It is owned by the
// pipeline's coordinating goroutine and is not safe for concurrent use.
type Guard struct {
	lastHash     string
	internalCopy bool
}

// MarkInternalCopy arms the one-shot flag before the daemon itself writes
// to the clipboard
func (g *Guard) MarkInternalCopy() {
	g.internalCopy = true
}

// ConsumeInternalCopy reports whether the flag was armed and disarms it.
// A true result means the current notification is our own echo.
func (g *Guard) ConsumeInternalCopy() bool {
	armed := g.internalCopy
	g.internalCopy = false
	return armed
}

// Admit rejects empty hashes and a repeat of the last admitted hash.
// On acceptance it records hash as the last captured value until the
// capture either lands or is rolled back with Restore.
func (g *Guard) Admit(hash string) bool {
	if hash == "" || hash == g.lastHash {
		return false
	}
	g.lastHash = hash
	return true
}

// Forget clears hash if it is still the last admitted value
func (g *Guard) Forget(hash string) {
	if g.lastHash == hash {
		g.lastHash = ""
	}
}

// Restore puts prev back as the last hash when hash did not end up
// captured, either because it failed or because history already had it.
// It does nothing if a later capture was admitted in the meantime.
func (g *Guard) Restore(hash, prev string) {
	if g.lastHash == hash {
		g.lastHash = prev
	}
}

// LastHash returns the most recently admitted hash
func (g *Guard) LastHash() string {
	return g.lastHash
}

// HashLookup is the persisted half of duplicate suppression
type HashLookup interface {
	HasHash(ctx context.Context, hash string) (bool, error)
}

// SeenBefore asks the store whether hash is already in history.
// It runs on a worker; the empty hash is never considered seen.
func SeenBefore(ctx context.Context, lookup HashLookup, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	return lookup.HasHash(ctx, hash)
}
