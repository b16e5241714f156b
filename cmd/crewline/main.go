// Command crewline runs multi-agent workflows defined in YAML.
package main

func main() {
	Execute()
}
