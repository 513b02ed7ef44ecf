package main

func main() {
	Cmd()
}
