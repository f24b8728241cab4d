package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// Consecutive guards with the same return can merge with ||.
	//   if a { return err }
	//   if b { return err }
	// => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// Not always wrong, but worth a look when it shows up in a handler.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

func errorsAndLogging(m dsl.Matcher) {
	m.Match(`errors.New(fmt.Sprintf($*args))`).
		Report(`use fmt.Errorf($args) instead of errors.New(fmt.Sprintf(...))`).
		Suggest(`fmt.Errorf($args)`)

	// Library packages log through the injected *zap.Logger; stdout belongs
	// to the CLI and the MCP stdio transport.
	m.Match(`fmt.Println($*_)`, `fmt.Printf($*_)`, `fmt.Print($*_)`, `log.Printf($*_)`, `log.Println($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`write logs through the injected *zap.Logger`)

	m.Match(`$l.Error($msg, zap.Any("error", $err))`).
		Report(`use zap.Error($err) so the field is named "error" consistently`).
		Suggest(`$l.Error($msg, zap.Error($err))`)
}

func nativeCalls(m dsl.Matcher) {
	// The converter library must be reached through EnsureLoaded.
	m.Match(`fnConvert($*_)`).
		Where(!m.File().Name.Matches(`^bridge\.go$`)).
		Report(`call the converter through ConvertIfcToGlb so the library is loaded first`)
}
