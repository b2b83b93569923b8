/*
Package resilience provides per-host circuit breakers for fetches.

A mirror that keeps failing (transport errors or 5xx responses) is opened
after Threshold consecutive failures. While open, fetches to it are refused
with ErrHostUnavailable instead of connecting. After Cooldown one probe is
let through: success closes the host again, failure reopens it.

	Closed --[failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                            |
	                                     [probe fails]
	                                            |
	                                            v
	                                          Open

# Usage

	breakers := resilience.NewHostBreakers(resilience.Settings{
		Threshold: 3,
		Cooldown:  30 * time.Second,
	})

	release, err := breakers.Acquire(u.Host)
	if err != nil {
		return err
	}
	res := engine.FetchBinary(ctx, spec)
	release(res.Success || (res.StatusCode != 0 && res.StatusCode < 500))
*/
package resilience
