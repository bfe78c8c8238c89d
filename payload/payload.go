// Package payload builds the expressions sent to the remote evaluation
// service. Every builder returns exactly one self-contained expression,
// terminated by a newline and containing no interior newlines, because the
// remote side evaluates one expression per write and the transport has no
// framing of its own. Side effects (chdir, namespace updates) are sequenced
// with tuple and lambda application, which the remote language evaluates
// strictly left to right.
package payload

import (
	"fmt"
	"strings"
)

// Wire sentinels. These literals are part of the contract with the remote
// evaluator and must not change between releases.
const (
	OK          = "OK"
	ErrPrefix   = "ERR: "
	ErrNotFound = "ERR: not found"
	ErrWrite    = "ERR: write"

	// NoPrevDir is printed by the change-directory toggle when the
	// previous-directory slot has never been set.
	NoPrevDir = "No previous directory"

	// PrevDirVar names the slot in the remote global namespace that holds
	// the previous working directory. It persists across requests for the
	// lifetime of the remote process.
	PrevDirVar = "__evalshell_prevdir"
)

// Mode selects how a chunk write opens the remote file.
type Mode int

const (
	ModeCreate Mode = iota // truncate and create
	ModeAppend
)

const (
	osImp   = "__import__('os')"
	pathImp = "__import__('os').path"
	getcwd  = osImp + ".getcwd()"
	globals = "__import__('builtins').globals()"
	cdMsg   = "'Changed directory to: '+" + getcwd + `+'\n'`
)

func write(expr string) string {
	return "__import__('sys').stdout.write(" + expr + ")"
}

// Pwd prints the remote working directory followed by a newline.
func Pwd() string {
	return write(getcwd+`+'\n'`) + "\n"
}

// Shell runs cmd through the remote platform shell with the remote working
// directory as cwd, and prints captured stdout concatenated with stderr.
func Shell(cmd string) string {
	return "(lambda __c: (lambda __r: " +
		write("((__r.stdout or '') + (__r.stderr or ''))") +
		")(__import__('subprocess').run(__c, shell=True, capture_output=True, text=True, cwd=" +
		getcwd + ")))(" + quote(cmd) + ")\n"
}

// ChangeDir changes the remote working directory and prints a confirmation
// that re-reads the directory after the change. An empty target resolves to
// the remote home directory, "-" toggles with the previous directory, ".."
// moves to the parent, and anything else is a path with a leading ~ expanded
// remotely. Every non-toggle form stores the directory being left in
// PrevDirVar; the home form intentionally does not, matching the original
// client.
func ChangeDir(target string) string {
	target = strings.TrimSpace(target)

	if target == "" {
		return "(" + osImp + ".chdir(" + pathImp + ".expanduser('~'))," + write(cdMsg) + ")\n"
	}

	if target == "-" {
		return "(lambda __g: (" +
			write(quote(NoPrevDir+"\n")) +
			" if " + quote(PrevDirVar) + " not in __g else " +
			"(lambda __cur,__prev: (" + osImp + ".chdir(__prev), " +
			"__g.update({" + quote(PrevDirVar) + ": __cur}), " +
			write(cdMsg) +
			"))(" + getcwd + ", __g[" + quote(PrevDirVar) + "])" +
			"))(" + globals + ")\n"
	}

	if target == ".." {
		return "(lambda __p: (" + osImp + ".chdir(__p), " + write(cdMsg) + "))(" +
			pathImp + ".dirname(" + getcwd + "))\n"
	}

	return "(lambda __g,__cur: (" +
		osImp + ".chdir(" + pathImp + ".expanduser(" + quote(target) + ")), " +
		"__g.update({" + quote(PrevDirVar) + ": __cur}), " +
		write(cdMsg) +
		"))(" + globals + "," + getcwd + ")\n"
}

// StatSize prints the byte size of the remote file as decimal text, or
// ErrNotFound if the path is not a regular file.
func StatSize(path string) string {
	return write("(lambda __p: (str("+pathImp+".getsize(__p)) if "+pathImp+
		".isfile(__p) else "+quote(ErrNotFound)+"))("+quote(path)+")") + "\n"
}

// ReadChunk prints up to size bytes of the remote file starting at offset,
// base64-encoded, or ErrNotFound if the path is not a regular file.
func ReadChunk(path string, offset, size int64) string {
	return write(fmt.Sprintf(
		"(lambda __p,__o,__n: ((lambda __f: (__f.seek(__o), "+
			"__import__('base64').b64encode(__f.read(__n)).decode())[1])(open(__p,'rb'))) "+
			"if "+pathImp+".isfile(__p) else "+quote(ErrNotFound)+")(%s,%d,%d)",
		quote(path), offset, size)) + "\n"
}

// WriteChunk decodes b64 remotely and writes the raw bytes to the remote
// path, truncating for ModeCreate and appending for ModeAppend. Prints OK on
// success and ErrWrite when the destination directory does not exist; any
// other remote failure produces non-OK output, which callers treat the same
// way.
func WriteChunk(path, b64 string, mode Mode) string {
	flags := "'wb'"
	if mode == ModeAppend {
		flags = "'ab'"
	}
	return write("(lambda __p,__b: ((lambda __f: (__f.write(__import__('base64').b64decode(__b)), " +
		"__f.close(), " + quote(OK) + ")[2])(open(__p," + flags + "))) " +
		"if " + pathImp + ".isdir(" + pathImp + ".dirname(__p) or '.') " +
		"else " + quote(ErrWrite) + ")(" + quote(path) + "," + quote(b64) + ")") + "\n"
}

// quote renders s as a single-quoted remote string literal on one line.
// Anything that could terminate the literal or split the expression is
// escaped; non-ASCII runes become \u or \U escapes so the payload stays
// pure ASCII.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			switch {
			case r < 0x20 || r == 0x7f:
				b.WriteString(fmt.Sprintf(`\x%02x`, r))
			case r > 0x7f && r <= 0xffff:
				b.WriteString(fmt.Sprintf(`\u%04x`, r))
			case r > 0xffff:
				b.WriteString(fmt.Sprintf(`\U%08x`, r))
			default:
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('\'')
	return b.String()
}
