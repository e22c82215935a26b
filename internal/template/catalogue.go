package template

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Generator produces one value from a literal argument list.
type Generator func(args []any) (any, error)

// Catalogue resolves generators by two-level name.
type Catalogue interface {
	Lookup(category, method string) (Generator, bool)
	Methods() map[string][]string
}

// Generators is a map-backed Catalogue keyed by category, then method.
type Generators map[string]map[string]Generator

func (g Generators) Lookup(category, method string) (Generator, bool) {
	methods, ok := g[category]
	if !ok {
		return nil, false
	}
	gen, ok := methods[method]
	return gen, ok
}

// Methods lists the method names of every category, sorted.
func (g Generators) Methods() map[string][]string {
	out := make(map[string][]string, len(g))
	for category, methods := range g {
		names := make([]string, 0, len(methods))
		for name := range methods {
			names = append(names, name)
		}
		sort.Strings(names)
		out[category] = names
	}
	return out
}

// lockedFaker serializes access to a single gofakeit source.
type lockedFaker struct {
	mu sync.Mutex
	f  *gofakeit.Faker
}

func (l *lockedFaker) str(fn func(f *gofakeit.Faker) string) Generator {
	return func([]any) (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		return fn(l.f), nil
	}
}

func (l *lockedFaker) with(fn func(f *gofakeit.Faker, args []any) (any, error)) Generator {
	return func(args []any) (any, error) {
		l.mu.Lock()
		defer l.mu.Unlock()
		return fn(l.f, args)
	}
}

// NewFakerCatalogue returns the default catalogue backed by gofakeit. Method
// names follow the faker.js vocabulary the UI offers.
func NewFakerCatalogue() Generators {
	l := &lockedFaker{f: gofakeit.New(0)}

	return Generators{
		"person": {
			"fullName":  l.str((*gofakeit.Faker).Name),
			"firstName": l.str((*gofakeit.Faker).FirstName),
			"lastName":  l.str((*gofakeit.Faker).LastName),
			"jobTitle":  l.str((*gofakeit.Faker).JobTitle),
			"sex":       l.str((*gofakeit.Faker).Gender),
			"prefix":    l.str((*gofakeit.Faker).NamePrefix),
			"suffix":    l.str((*gofakeit.Faker).NameSuffix),
			"id":        l.str((*gofakeit.Faker).UUID),
		},
		"internet": {
			"email":      l.str((*gofakeit.Faker).Email),
			"userName":   l.str((*gofakeit.Faker).Username),
			"username":   l.str((*gofakeit.Faker).Username),
			"url":        l.str((*gofakeit.Faker).URL),
			"domainName": l.str((*gofakeit.Faker).DomainName),
			"ip":         l.str((*gofakeit.Faker).IPv4Address),
			"ipv4":       l.str((*gofakeit.Faker).IPv4Address),
			"ipv6":       l.str((*gofakeit.Faker).IPv6Address),
			"mac":        l.str((*gofakeit.Faker).MacAddress),
			"userAgent":  l.str((*gofakeit.Faker).UserAgent),
			"httpMethod": l.str((*gofakeit.Faker).HTTPMethod),
		},
		"location": {
			"city":          l.str((*gofakeit.Faker).City),
			"country":       l.str((*gofakeit.Faker).Country),
			"countryCode":   l.str((*gofakeit.Faker).CountryAbr),
			"state":         l.str((*gofakeit.Faker).State),
			"street":        l.str((*gofakeit.Faker).Street),
			"streetAddress": l.str((*gofakeit.Faker).Street),
			"zipCode":       l.str((*gofakeit.Faker).Zip),
			"latitude": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				return f.Latitude(), nil
			}),
			"longitude": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				return f.Longitude(), nil
			}),
		},
		"commerce": {
			"productName":      l.str((*gofakeit.Faker).ProductName),
			"department":       l.str((*gofakeit.Faker).ProductCategory),
			"productAdjective": l.str((*gofakeit.Faker).Adjective),
			"price": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				lo, hi, err := rangeArgs(args, 1, 1000)
				if err != nil {
					return nil, err
				}
				return fmt.Sprintf("%.2f", f.Price(lo, hi)), nil
			}),
		},
		"company": {
			"name":        l.str((*gofakeit.Faker).Company),
			"catchPhrase": l.str((*gofakeit.Faker).HackerPhrase),
			"buzzPhrase":  l.str((*gofakeit.Faker).BS),
			"buzzNoun":    l.str((*gofakeit.Faker).BuzzWord),
		},
		"lorem": {
			"word": l.str((*gofakeit.Faker).Word),
			"words": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				n, err := countArg(args, 3)
				if err != nil {
					return nil, err
				}
				return words(f, n), nil
			}),
			"sentence": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				n, err := countArg(args, 8)
				if err != nil {
					return nil, err
				}
				return sentence(f, n), nil
			}),
			"paragraph": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				n, err := countArg(args, 3)
				if err != nil {
					return nil, err
				}
				sentences := make([]string, n)
				for i := range sentences {
					sentences[i] = sentence(f, 6+f.Number(0, 6))
				}
				return strings.Join(sentences, " "), nil
			}),
		},
		"number": {
			"int": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				lo, hi, err := rangeArgs(args, 0, 1000)
				if err != nil {
					return nil, err
				}
				return f.Number(int(lo), int(hi)), nil
			}),
			"float": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				lo, hi, err := rangeArgs(args, 0, 1)
				if err != nil {
					return nil, err
				}
				return f.Float64Range(lo, hi), nil
			}),
		},
		"string": {
			"uuid": l.str((*gofakeit.Faker).UUID),
			"alpha": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				n, err := countArg(args, 10)
				if err != nil {
					return nil, err
				}
				return f.LetterN(uint(n)), nil
			}),
			"numeric": l.with(func(f *gofakeit.Faker, args []any) (any, error) {
				n, err := countArg(args, 6)
				if err != nil {
					return nil, err
				}
				return f.DigitN(uint(n)), nil
			}),
		},
		"date": {
			"past": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				return f.PastDate(), nil
			}),
			"future": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				return f.FutureDate(), nil
			}),
			"recent": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				now := time.Now()
				return f.DateRange(now.Add(-24*time.Hour), now), nil
			}),
			"birthdate": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				now := time.Now()
				return f.DateRange(now.AddDate(-80, 0, 0), now.AddDate(-18, 0, 0)), nil
			}),
		},
		"phone": {
			"number": l.str((*gofakeit.Faker).Phone),
		},
		"datatype": {
			"boolean": l.with(func(f *gofakeit.Faker, _ []any) (any, error) {
				return f.Bool(), nil
			}),
		},
		"color": {
			"human": l.str((*gofakeit.Faker).Color),
			"rgb":   l.str((*gofakeit.Faker).HexColor),
		},
	}
}

func words(f *gofakeit.Faker, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = f.Word()
	}
	return strings.Join(out, " ")
}

func sentence(f *gofakeit.Faker, n int) string {
	s := words(f, n)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// rangeArgs accepts (min, max) positionally or as {"min": x, "max": y}.
func rangeArgs(args []any, lo, hi float64) (float64, float64, error) {
	if len(args) == 1 {
		if opts, ok := args[0].(map[string]any); ok {
			if v, ok := opts["min"]; ok {
				n, ok := v.(float64)
				if !ok {
					return 0, 0, fmt.Errorf("min must be a number, got %v", v)
				}
				lo = n
			}
			if v, ok := opts["max"]; ok {
				n, ok := v.(float64)
				if !ok {
					return 0, 0, fmt.Errorf("max must be a number, got %v", v)
				}
				hi = n
			}
			args = nil
		}
	}
	for i, arg := range args {
		if i > 1 {
			break
		}
		n, ok := arg.(float64)
		if !ok {
			return 0, 0, fmt.Errorf("argument %d must be a number, got %v", i+1, arg)
		}
		if i == 0 {
			lo = n
		} else {
			hi = n
		}
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("min %v is greater than max %v", lo, hi)
	}
	return lo, hi, nil
}

// countArg reads an optional positive count, positional or {"count": n}.
func countArg(args []any, fallback int) (int, error) {
	if len(args) == 0 {
		return fallback, nil
	}
	v := args[0]
	if opts, ok := v.(map[string]any); ok {
		c, ok := opts["count"]
		if !ok {
			return fallback, nil
		}
		v = c
	}
	n, ok := v.(float64)
	if !ok || n < 1 || n > 1000 {
		return 0, fmt.Errorf("count must be a number between 1 and 1000, got %v", v)
	}
	return int(n), nil
}
