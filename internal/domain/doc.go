// Package domain contains the core value types for asdustat.
//
// This package is the innermost layer: it has no dependencies on transport,
// logging or configuration, and holds only the data model the ingestion
// pipeline operates on.
//
// # Entities
//
//   - [ASDU]: a decoded application service data unit (category + information objects)
//   - [InformationObject]: one element of an ASDU, addressed by its IOA
//   - [TypeID]: the ASDU category, rendered with its IEC 60870-5-104 mnemonic
//   - [Command]: an outbound control request (single command or scaled setpoint)
//
// # Ownership
//
// ASDUs handed to the pipeline are pooled. [ASDU.Clone] produces an owned copy
// and [ASDU.Release] returns it to the pool; after Release the caller must not
// touch the value again.
package domain
