// Package candidates implements prefetch.CandidateSource backends: the
// published video catalogue in postgres, Gorse personalized recommendations,
// and a redis page cache that wraps either.
package candidates
