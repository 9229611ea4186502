package main

import "time"

func t0() time.Time { return time.Date(2026, 7, 1, 9, 30, 0, 0, time.UTC) }
