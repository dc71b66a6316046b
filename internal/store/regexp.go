package store

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"sync"

	"modernc.org/sqlite"
)

// regexpCache memoizes compiled patterns across REGEXP invocations. The
// filter engine evaluates the same handful of patterns against many rows,
// so compiling per row would dominate the query cost.
var regexpCache = struct {
	mu sync.Mutex
	m  map[string]*regexp.Regexp
}{m: make(map[string]*regexp.Regexp)}

func cachedRegexp(pattern string) (*regexp.Regexp, error) {
	regexpCache.mu.Lock()
	defer regexpCache.mu.Unlock()
	if re, ok := regexpCache.m[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexpCache.m[pattern] = re
	return re, nil
}

// init registers the SQL REGEXP operator. SQLite rewrites "X REGEXP Y" as
// regexp(Y, X), so args[0] is the pattern and args[1] the text.
func init() {
	err := sqlite.RegisterDeterministicScalarFunction("regexp", 2,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			pattern, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("store: regexp: pattern is not text: %T", args[0])
			}
			text, ok := args[1].(string)
			if !ok {
				// NULL text never matches.
				return int64(0), nil
			}
			re, err := cachedRegexp(pattern)
			if err != nil {
				return nil, fmt.Errorf("store: regexp: %w", err)
			}
			if re.MatchString(text) {
				return int64(1), nil
			}
			return int64(0), nil
		})
	if err != nil {
		panic(fmt.Sprintf("store: register regexp function: %v", err))
	}
}
