// Package text converts folder and file names into the fixed-width name
// fields of ST.DB.
//
// The dashboard stores names as two bytes per character but only ever reads
// the low byte. Encoding is therefore a lossy, one-way step:
//
//  1. Fold the name to ASCII ("Pokémon" becomes "Pokemon", "東京" becomes
//     "Dong Jing").
//  2. Trim surrounding whitespace.
//  3. Keep at most maxChars characters.
//  4. Widen every byte to [byte, 0] and zero-pad to maxChars slots.
//
// This is not UTF-16 and must not become UTF-16: a real wide encoding would
// change what the dashboard displays and break fixed-width names.
//
//	name := text.EncodeName("Boss Theme") // [32]model.WideChar
package text
