package utils

const PileboxArt = `
	 ____  _ _      _
	|  _ \(_) | ___| |__   _____  __
	| |_) | | |/ _ \ '_ \ / _ \ \/ /
	|  __/| | |  __/ |_) | (_) >  <
	|_|   |_|_|\___|_.__/ \___/_/\_\
`
