// Package seqmodel provides the profile-HMM and amino-acid sequence types
// that anchor the rest of this module: Plan7 profiles with fitted Gumbel and
// exponential tail distributions, and the sequences searched against them.
package seqmodel
