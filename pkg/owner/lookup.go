package owner

import (
	"os/user"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// lookupPasswdDB is the primary, reentrant password-database lookup.
// os/user.LookupId uses the cgo-backed getpwuid_r when cgo is available and
// a pure-Go /etc/passwd scan otherwise.
//
// Some hosts have been observed to crash the lookup under odd libc/nsswitch
// combinations (cgo getpwuid_r faulting inside a statically-linked or
// sandboxed binary). recover() catches a Go-level panic from that path;
// it cannot catch an actual SIGSEGV delivered to the process, which is why
// Resolver additionally remembers failures via primaryBroken so a host that
// is merely slow or erroring — not crashing — still only pays the cost
// once per process, not once per file.
func lookupPasswdDB(uid uint32) (name string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("uid", uid).WithField("panic", r).Warn("owner: passwd database lookup panicked")
			name, ok = "", false
		}
	}()

	u, err := user.LookupId(strconv.FormatUint(uint64(uid), 10))
	if err != nil {
		return "", false
	}
	if u.Username == "" {
		return "", false
	}
	return u.Username, true
}
