package untis

import (
	"net/url"
	"strings"
)

// BaseURLs builds the candidate API roots for a server host. Deployments
// differ in whether the WebUntis path prefix is part of the host config,
// so callers try each root in turn on transport failure.
func BaseURLs(server string) []string {
	s := strings.TrimSpace(server)
	s = strings.TrimRight(s, "/")
	if s == "" {
		return nil
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	var out []string
	if strings.HasSuffix(strings.ToLower(s), "/webuntis") {
		out = append(out, s)
	} else {
		out = append(out, s+"/WebUntis", s)
	}

	return out
}

// RPCURLs lists the candidate endpoints of the legacy protocol.
func RPCURLs(server, school string) []string {
	return rpcEndpoints(server, school, "jsonrpc.do")
}

// InternRPCURLs lists the candidate endpoints of the 2017-era methods,
// which live on a separate servlet.
func InternRPCURLs(server, school string) []string {
	return rpcEndpoints(server, school, "jsonrpc_intern.do")
}

func rpcEndpoints(server, school, servlet string) []string {
	var out []string
	for _, base := range BaseURLs(server) {
		out = append(out, base+"/"+servlet+"?school="+url.QueryEscape(school))
	}

	return out
}

// RESTBaseURLs lists the candidate roots of the modern protocol.
func RESTBaseURLs(server string) []string {
	var out []string
	for _, base := range BaseURLs(server) {
		out = append(out, base+"/api/rest")
	}

	return out
}

// LoginPageURLs lists the public login pages, used for best-effort server
// version sniffing.
func LoginPageURLs(server, school string) []string {
	var out []string
	for _, base := range BaseURLs(server) {
		out = append(out, base+"/?school="+url.QueryEscape(school))
	}

	return out
}
