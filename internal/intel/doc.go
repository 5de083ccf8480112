// Package intel extracts threat indicators from collected page text.
//
// Two kinds of analysis run over each page:
//   - IOC extraction: network indicators (IP addresses, domains, onion
//     hosts), contact points (emails, PGP markers), file hashes, CVE
//     identifiers, and cryptocurrency addresses.
//   - Threat classification: keyword-density scoring against a fixed set
//     of categories, producing a 0-10 risk score per page.
//
// The analyzer is stateless; a single instance can be shared across
// goroutines safely.
package intel
