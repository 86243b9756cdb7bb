// Command spin never returns.
package main

var counter int

func main() {
	for {
		counter++
	}
}
